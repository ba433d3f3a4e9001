package fieldtypes

import (
	"strings"
	"testing"
)

func TestDeclarationDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		decl    Declaration
		want    Descriptor
		wantErr string
	}{
		{"bool defaults to size 1", Declaration{Kind: Bool}, Descriptor{Kind: Bool, Size: 1}, ""},
		{"int with flags", Declaration{Kind: Int, Size: 5, Flags: []Flag{NotNull, NoDuplicates}}, Descriptor{Kind: Int, Size: 5, Flags: NotNull | NoDuplicates}, ""},
		{"string array", Declaration{Kind: String, Size: 20, Flags: []Flag{Array}}, Descriptor{Kind: String, Size: 20, Flags: Array}, ""},
		{"datetime micro", Declaration{Kind: DateTime, Size: 6}, Descriptor{Kind: DateTime, Size: 6}, ""},
		{"datetime seconds", Declaration{Kind: DateTime}, Descriptor{Kind: DateTime}, ""},
		{"unknown kind", Declaration{Kind: "FLOAT", Size: 3}, Descriptor{}, "unknown type"},
		{"missing size", Declaration{Kind: String}, Descriptor{}, "missing size"},
		{"negative size", Declaration{Kind: Int, Size: -1}, Descriptor{}, "missing size"},
		{"duplicate flag", Declaration{Kind: Int, Size: 2, Flags: []Flag{NotNull, NotNull}}, Descriptor{}, "duplicate flag NOT_NULL"},
		{"array and multi language", Declaration{Kind: String, Size: 2, Flags: []Flag{Array, MultiLanguage}}, Descriptor{}, "cannot be combined"},
		{"combined flag value", Declaration{Kind: String, Size: 2, Flags: []Flag{Array | NotNull}}, Descriptor{}, "invalid flag"},
		{"datetime bad precision", Declaration{Kind: DateTime, Size: 2}, Descriptor{}, "0, 3 or 6"},
		{"bool bad size", Declaration{Kind: Bool, Size: 4}, Descriptor{}, "BOOL size"},
		{"int at bigint limit", Declaration{Kind: Int, Size: 19}, Descriptor{Kind: Int, Size: 19}, ""},
		{"int beyond bigint", Declaration{Kind: Int, Size: 20}, Descriptor{}, "at most 19"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.decl.Descriptor()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Descriptor() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Descriptor() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Descriptor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescriptorFlags(t *testing.T) {
	d := Descriptor{Kind: String, Size: 10, Flags: MultiLanguage | NotNull}

	if !d.IsLocalized() || d.IsArray() || d.IsBasic() {
		t.Errorf("unexpected container flags on %v", d)
	}
	scalar := d.Scalar()
	if !scalar.IsBasic() || !scalar.Has(NotNull) {
		t.Errorf("Scalar() = %v, want basic NOT_NULL", scalar)
	}
	if got := (NotNull | Array).String(); got != "NOT_NULL|ARRAY" {
		t.Errorf("Flag.String() = %q", got)
	}
}
