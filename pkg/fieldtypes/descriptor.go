package fieldtypes

import (
	"fmt"
	"strings"
)

// Kind is the logical storage type of an entity property
type Kind string

const (
	Bool     Kind = "BOOL"
	Int      Kind = "INT"
	Double   Kind = "DOUBLE"
	String   Kind = "STRING"
	DateTime Kind = "DATETIME"
)

// IsValid reports whether k is one of the supported kinds
func (k Kind) IsValid() bool {
	switch k {
	case Bool, Int, Double, String, DateTime:
		return true
	}
	return false
}

// Flag is a property modifier. Flags combine as a bit set on a Descriptor.
type Flag uint8

const (
	NotNull Flag = 1 << iota
	Array
	MultiLanguage
	NoDuplicates
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{NotNull, "NOT_NULL"},
	{Array, "ARRAY"},
	{MultiLanguage, "MULTI_LANGUAGE"},
	{NoDuplicates, "NO_DUPLICATES"},
}

func (f Flag) isSingle() bool {
	for _, fn := range flagNames {
		if f == fn.flag {
			return true
		}
	}
	return false
}

func (f Flag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// ValidPrecisions are the fractional second digits a DATETIME may carry
var ValidPrecisions = []int{0, 3, 6}

// MaxIntDigits is the largest INT size, the digits of a signed 64-bit BIGINT
const MaxIntDigits = 19

// IsValidPrecision reports whether p is 0, 3 or 6
func IsValidPrecision(p int) bool {
	for _, v := range ValidPrecisions {
		if v == p {
			return true
		}
	}
	return false
}

// Descriptor is the resolved type of a property: (kind, size, flags).
// Size is a digit count for INT and DOUBLE, a character length for STRING,
// the fractional second digits for DATETIME and always 1 for BOOL.
type Descriptor struct {
	Kind  Kind
	Size  int
	Flags Flag
}

// Has reports whether the descriptor carries every flag in f
func (d Descriptor) Has(f Flag) bool {
	return d.Flags&f == f
}

// IsArray reports whether the descriptor describes an array property
func (d Descriptor) IsArray() bool { return d.Has(Array) }

// IsLocalized reports whether the descriptor describes a multi-language property
func (d Descriptor) IsLocalized() bool { return d.Has(MultiLanguage) }

// IsBasic reports whether the property is stored directly on the main table
func (d Descriptor) IsBasic() bool { return !d.IsArray() && !d.IsLocalized() }

// Scalar returns the descriptor of a single element, without container flags
func (d Descriptor) Scalar() Descriptor {
	d.Flags &^= Array | MultiLanguage
	return d
}

func (d Descriptor) String() string {
	if d.Flags == 0 {
		return fmt.Sprintf("%s(%d)", d.Kind, d.Size)
	}
	return fmt.Sprintf("%s(%d) %s", d.Kind, d.Size, d.Flags)
}

// Declaration is an explicit per-class type for a property. Flags are kept as
// a list so repeated flags can be reported.
type Declaration struct {
	Kind  Kind
	Size  int
	Flags []Flag
}

// Descriptor validates the declaration and returns the resolved descriptor
func (d Declaration) Descriptor() (Descriptor, error) {
	if !d.Kind.IsValid() {
		return Descriptor{}, fmt.Errorf("unknown type %q", d.Kind)
	}

	var flags Flag
	for _, f := range d.Flags {
		if !f.isSingle() {
			return Descriptor{}, fmt.Errorf("invalid flag value %d", f)
		}
		if flags&f != 0 {
			return Descriptor{}, fmt.Errorf("duplicate flag %s", f)
		}
		flags |= f
	}

	if flags&Array != 0 && flags&MultiLanguage != 0 {
		return Descriptor{}, fmt.Errorf("flags %s and %s cannot be combined", Array, MultiLanguage)
	}

	size := d.Size
	switch d.Kind {
	case Bool:
		if size != 0 && size != 1 {
			return Descriptor{}, fmt.Errorf("BOOL size must be 1, got %d", size)
		}
		size = 1
	case Int, Double, String:
		if size <= 0 {
			return Descriptor{}, fmt.Errorf("missing size for %s", d.Kind)
		}
		if d.Kind == Int && size > MaxIntDigits {
			return Descriptor{}, fmt.Errorf("INT size must be at most %d, got %d", MaxIntDigits, size)
		}
	case DateTime:
		if !IsValidPrecision(size) {
			return Descriptor{}, fmt.Errorf("DATETIME size must be 0, 3 or 6, got %d", size)
		}
	}

	return Descriptor{Kind: d.Kind, Size: size, Flags: flags}, nil
}
