package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/persist/pkg/constants"
)

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool([]byte("1")))
	assert.True(t, ToBool(int64(1)))
	assert.True(t, ToBool("yes"))
	assert.False(t, ToBool(nil))
	assert.False(t, ToBool([]byte("0")))
	assert.False(t, ToBool(0.0))
}

func TestToInt64(t *testing.T) {
	i, ok := ToInt64([]byte("42"))
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	i, ok = ToInt64(uint8(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = ToInt64(1.5)
	assert.False(t, ok)

	_, ok = ToInt64("abc")
	assert.False(t, ok)
}

func TestToFloat64(t *testing.T) {
	f, ok := ToFloat64([]byte("1.25"))
	assert.True(t, ok)
	assert.Equal(t, 1.25, f)

	f, ok = ToFloat64(3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
}

func TestToSlice(t *testing.T) {
	elems, ok := ToSlice([]string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, elems)

	_, ok = ToSlice("not a slice")
	assert.False(t, ok)
}

func TestUUID(t *testing.T) {
	id, err := GenerateUUID()
	assert.NoError(t, err)
	assert.Len(t, id, constants.UUIDLength)
	assert.True(t, IsValidUUID(id))
	assert.False(t, IsValidUUID("{"+id+"}"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}
