package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

// Policy decides what the synchronizer does with a live column that differs
// from the target definition
type Policy string

const (
	PolicyFail Policy = "fail"
	PolicyYes  Policy = "yes"
	PolicyNo   Policy = "no"
)

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFail, PolicyYes, PolicyNo:
		return p, nil
	}
	return "", fmt.Errorf("invalid column policy %q (expected fail, yes or no)", s)
}

// maxIdentifierLength is the MySQL limit for table, column, index and constraint names
const maxIdentifierLength = 64

// ColumnDefinition represents a single column in a table
type ColumnDefinition struct {
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Kind          fieldtypes.Kind `json:"kind"`
	Size          int             `json:"size"`
	Nullable      bool            `json:"nullable,omitempty"`
	AutoIncrement bool            `json:"auto_increment,omitempty"`
}

// IndexDefinition represents an index on a table
type IndexDefinition struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// ForeignKeyDefinition represents a foreign key constraint
type ForeignKeyDefinition struct {
	Name             string `json:"name"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	OnDelete         string `json:"on_delete,omitempty"` // CASCADE, SET NULL, RESTRICT
}

// TableDefinition represents the target shape of one table. Definitions are
// derived from entity classes and compared against the live schema.
type TableDefinition struct {
	TableName     string                 `json:"table_name"`
	Columns       []ColumnDefinition     `json:"columns"`
	PrimaryKey    []string               `json:"primary_key,omitempty"`
	UniqueIndices []IndexDefinition      `json:"unique_indices,omitempty"`
	ForeignKeys   []ForeignKeyDefinition `json:"foreign_keys,omitempty"`

	// DeferredColumns belong to the table but could not be typed this time.
	// They are never created and never reported as extra columns.
	DeferredColumns []string `json:"deferred_columns,omitempty"`

	DeleteColumnsPolicy Policy `json:"delete_columns_policy"`
	ResizeColumnsPolicy Policy `json:"resize_columns_policy"`
}

// Column returns the column with the given name
func (t *TableDefinition) Column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// IsDeferred reports whether a column is known to the entity but untyped
func (t *TableDefinition) IsDeferred(name string) bool {
	for _, c := range t.DeferredColumns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the column names in declaration order
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Fingerprint identifies the complete target shape, policies included
func (t *TableDefinition) Fingerprint() string {
	data, err := json.Marshal(t)
	if err != nil {
		// Only plain strings, ints and bools are marshalled
		panic(fmt.Sprintf("schema: cannot marshal table definition: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IndexName builds a deterministic index or constraint name that fits the
// MySQL identifier limit
func IndexName(prefix, table string, columns ...string) string {
	name := prefix + "_" + table + "_" + strings.Join(columns, "_")
	if len(name) <= maxIdentifierLength {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:12]
	return name[:maxIdentifierLength-len(suffix)-1] + "_" + suffix
}
