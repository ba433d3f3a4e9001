package fieldtypes

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/nexuscrm/persist/pkg/utils"
)

// Infer derives a descriptor from a property value. The second result is
// false when the value carries no type information (nil, empty slice).
func Infer(value any) (Descriptor, bool, error) {
	if value == nil {
		return Descriptor{}, false, nil
	}
	if elems, ok := utils.ToSlice(value); ok {
		d, found, err := InferElements(elems, false)
		if err != nil || !found {
			return Descriptor{}, found, err
		}
		d.Flags |= Array
		return d, true, nil
	}
	d, err := inferScalar(value)
	if err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

// InferElements derives the descriptor of the largest element. All non-nil
// elements must share one kind. Nil elements fail unless skipNil is set.
func InferElements(values []any, skipNil bool) (Descriptor, bool, error) {
	var (
		largest Descriptor
		found   bool
	)
	for i, v := range values {
		if v == nil {
			if skipNil {
				continue
			}
			return Descriptor{}, false, fmt.Errorf("element %d is nil", i)
		}
		d, err := inferScalar(v)
		if err != nil {
			return Descriptor{}, false, fmt.Errorf("element %d: %w", i, err)
		}
		if !found {
			largest, found = d, true
			continue
		}
		if d.Kind != largest.Kind {
			return Descriptor{}, false, fmt.Errorf("mixed element types %s and %s", largest.Kind, d.Kind)
		}
		if d.Size > largest.Size {
			largest.Size = d.Size
		}
	}
	// Element flags do not carry over to the container
	largest.Flags = 0
	return largest, found, nil
}

func inferScalar(value any) (Descriptor, error) {
	switch v := value.(type) {
	case bool:
		return Descriptor{Kind: Bool, Size: 1, Flags: NotNull}, nil
	case string:
		return Descriptor{Kind: String, Size: max(1, utf8.RuneCountInString(v))}, nil
	case time.Time:
		return Descriptor{Kind: DateTime, Size: TimePrecision(v)}, nil
	}
	if utils.IsInteger(value) {
		if _, ok := utils.ToInt64(value); !ok {
			return Descriptor{}, fmt.Errorf("%v exceeds the signed 64-bit range of BIGINT", value)
		}
		return Descriptor{Kind: Int, Size: IntegerDigits(value)}, nil
	}
	if utils.IsFloat(value) {
		f, _ := utils.ToFloat64(value)
		n, err := FloatDigits(f)
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Kind: Double, Size: n}, nil
	}
	if _, ok := utils.ToSlice(value); ok {
		return Descriptor{}, fmt.Errorf("nested arrays are not supported")
	}
	return Descriptor{}, fmt.Errorf("unsupported value type %T", value)
}

// IntegerDigits counts the decimal digits of the absolute value of an integer
func IntegerDigits(value any) int {
	var s string
	switch v := value.(type) {
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	default:
		i, _ := utils.ToInt64(value)
		s = strconv.FormatInt(i, 10)
	}
	if s[0] == '-' {
		return len(s) - 1
	}
	return len(s)
}

// FloatDigits counts the integer and fractional digits of the shortest
// decimal representation of f
func FloatDigits(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v cannot be stored", f)
	}
	n := 0
	for _, c := range strconv.FormatFloat(math.Abs(f), 'f', -1, 64) {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n, nil
}

// TimePrecision returns the smallest of 0, 3 or 6 fractional digits that
// represents t without loss at microsecond resolution
func TimePrecision(t time.Time) int {
	ns := t.Nanosecond()
	switch {
	case ns == 0:
		return 0
	case ns%int(time.Millisecond) == 0:
		return 3
	default:
		return 6
	}
}

// Conform checks a single scalar value against a descriptor. Array and
// localized containers are checked element by element by the caller.
func Conform(d Descriptor, value any) error {
	if value == nil {
		if d.Has(NotNull) {
			return fmt.Errorf("nil is not allowed for a %s value", d.Kind)
		}
		return nil
	}

	switch d.Kind {
	case Bool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected BOOL, got %T", value)
		}
		return nil
	case Int:
		if !utils.IsInteger(value) {
			return fmt.Errorf("expected INT, got %T", value)
		}
		return checkSize(d, IntegerDigits(value))
	case Double:
		if utils.IsInteger(value) {
			return checkSize(d, IntegerDigits(value))
		}
		if !utils.IsFloat(value) {
			return fmt.Errorf("expected DOUBLE, got %T", value)
		}
		f, _ := utils.ToFloat64(value)
		n, err := FloatDigits(f)
		if err != nil {
			return err
		}
		return checkSize(d, n)
	case String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected STRING, got %T", value)
		}
		return checkSize(d, utf8.RuneCountInString(s))
	case DateTime:
		switch v := value.(type) {
		case time.Time:
			return checkSize(d, TimePrecision(v))
		case string:
			_, precision, err := utils.ParseTimestamp(v)
			if err != nil {
				return err
			}
			return checkSize(d, precision)
		}
		return fmt.Errorf("expected DATETIME, got %T", value)
	}
	return fmt.Errorf("unknown type %q", d.Kind)
}

func checkSize(d Descriptor, size int) error {
	if size > d.Size {
		return fmt.Errorf("value size %d exceeds declared %s size %d", size, d.Kind, d.Size)
	}
	return nil
}
