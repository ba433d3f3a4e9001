package constants

import (
	"testing"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		prefix string
		class  string
		want   string
	}{
		{"td_", "Customer", "td_customer"},
		{"", "OrderLine", "orderline"},
		{"app_", "user", "app_user"},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			if got := TableName(tt.prefix, tt.class); got != tt.want {
				t.Errorf("TableName(%q, %q) = %v, want %v", tt.prefix, tt.class, got, tt.want)
			}
		})
	}
}

func TestChildTableName(t *testing.T) {
	if got := ChildTableName("td_customer", "Tags"); got != "td_customer_tags" {
		t.Errorf("ChildTableName() = %v, want td_customer_tags", got)
	}
}

func TestLocaleColumn(t *testing.T) {
	tests := []struct {
		locale string
		column string
	}{
		{"en_US", "en_US"},
		{"es_ES", "es_ES"},
		{"", NoLocaleColumn},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			if got := LocaleColumn(tt.locale); got != tt.column {
				t.Errorf("LocaleColumn(%q) = %v, want %v", tt.locale, got, tt.column)
			}
			if got := LocaleFromColumn(tt.column); got != tt.locale {
				t.Errorf("LocaleFromColumn(%q) = %v, want %v", tt.column, got, tt.locale)
			}
		})
	}
}

func TestIsSystemField(t *testing.T) {
	for _, name := range SystemFieldNames() {
		if !IsSystemField(name) {
			t.Errorf("IsSystemField(%q) = false, want true", name)
		}
	}
	if IsSystemField("name") {
		t.Errorf("IsSystemField(\"name\") = true, want false")
	}
}
