// Package orm persists plain domain objects into MySQL tables that are kept in
// sync with the objects' shape. Array properties and multi-language properties
// live in child tables named after their main table.
package orm

import (
	"sort"

	"github.com/nexuscrm/persist/pkg/fieldtypes"
)

// Entity is a persistable object. Implementations embed Base, which supplies
// the system attributes and the unexported method that seals the interface.
//
// Get returns the current value of a user property. Set receives loaded values
// in canonical form: int64, float64, string, bool, ISO-8601 strings for
// DATETIME (time.Time when the property's zero value is a time.Time), typed
// slices for arrays and Localized for multi-language properties.
type Entity interface {
	Class() *Class
	Properties() []string
	Get(property string) any
	Set(property string, value any) error

	base() *Base
}

// Class is the static per-type configuration of an entity. It is validated
// once by Manager.Register.
type Class struct {
	// Name of the entity type, used for the main table name
	Name string
	// New returns a zero instance, used for hydration and to learn property shapes
	New func() Entity
	// Types declares explicit types per property. Undeclared properties are inferred.
	Types map[string]fieldtypes.Declaration
	// MandatoryTyping requires a declaration for every property
	MandatoryTyping bool
	// UUIDEnabled adds a dbuuid column filled on first save
	UUIDEnabled bool
	// TrashEnabled adds a dbdeleted column
	TrashEnabled bool
	// TimestampPrecision is the fractional second digits (0, 3 or 6) of system dates
	TimestampPrecision int
	// UniqueIndices lists property groups that must be unique together
	UniqueIndices [][]string
}

// Base carries the system attributes of an entity. They are readable by
// anyone and written only by the Manager.
type Base struct {
	dbid             int64
	dbuuid           string
	creationDate     string
	modificationDate string
	deletedDate      string
	locales          []string
}

func (b *Base) base() *Base { return b }

// DBID returns the identity, zero until the entity has been saved
func (b *Base) DBID() int64 { return b.dbid }

// HasIdentity reports whether the entity has been persisted
func (b *Base) HasIdentity() bool { return b.dbid != 0 }

// DBUUID returns the universal identifier, empty unless the class enables it
func (b *Base) DBUUID() string { return b.dbuuid }

// CreationDate returns the ISO-8601 creation timestamp
func (b *Base) CreationDate() string { return b.creationDate }

// ModificationDate returns the ISO-8601 timestamp of the latest save
func (b *Base) ModificationDate() string { return b.modificationDate }

// DeletedDate returns the ISO-8601 trash timestamp
func (b *Base) DeletedDate() string { return b.deletedDate }

// SetLocales sets the locales the entity carries. The first one is primary.
func (b *Base) SetLocales(locales ...string) error {
	checked, err := ValidateLocales(locales)
	if err != nil {
		return err
	}
	b.locales = checked
	return nil
}

// Locales returns the locales the entity carries
func (b *Base) Locales() []string {
	out := make([]string, len(b.locales))
	copy(out, b.locales)
	return out
}

// PrimaryLocale returns the first locale, or the empty locale when none is set
func (b *Base) PrimaryLocale() string {
	if len(b.locales) == 0 {
		return ""
	}
	return b.locales[0]
}

// Localize returns the value of a multi-language property in the first of
// the entity's locales that holds one
func (b *Base) Localize(values Localized) any {
	for _, l := range b.locales {
		if v, ok := values[l]; ok {
			return v
		}
	}
	return values[""]
}

func (b *Base) setIdentity(id int64)           { b.dbid = id }
func (b *Base) setUUID(id string)              { b.dbuuid = id }
func (b *Base) setCreationDate(ts string)      { b.creationDate = ts }
func (b *Base) setModificationDate(ts string)  { b.modificationDate = ts }
func (b *Base) setDeletedDate(ts string)       { b.deletedDate = ts }
func (b *Base) setLocalesUnchecked(l []string) { b.locales = append([]string(nil), l...) }

// Localized holds the values of a multi-language property keyed by locale.
// The empty locale holds a value that belongs to no language.
type Localized map[string]any

// SortedLocales returns the map keys in lexical order
func (l Localized) SortedLocales() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the values in SortedLocales order
func (l Localized) Values() []any {
	keys := l.SortedLocales()
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = l[k]
	}
	return values
}
