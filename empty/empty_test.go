package empty

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestUnit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, T{}, V)
	assert.Zero(t, unsafe.Sizeof(V))
}

func TestValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Value[int]())
	assert.Empty(t, Value[string]())
	assert.Nil(t, Value[*int]())
	assert.Equal(t, V, Value[T]())
}
