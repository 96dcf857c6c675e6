package kerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New("memengine.Reserve", KindOutOfMemory, "no free blocks in class small")
	assert.Equal(t, "aether: memengine.Reserve: no free blocks in class small", err.Error())
}

func TestIsKind(t *testing.T) {
	err := New("sched.Send", KindMailboxFull, "mailbox at capacity")
	assert.True(t, IsKind(err, KindMailboxFull))
	assert.False(t, IsKind(err, KindOutOfMemory))
}

func TestWrapPreservesKind(t *testing.T) {
	inner := New("fdt.parseToken", KindFDTInvalid, "bad magic")
	wrapped := Wrap("drivers.Bind", inner)
	require.Error(t, wrapped)
	assert.True(t, IsKind(wrapped, KindFDTInvalid))

	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "drivers.Bind", target.Op)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap("anything", nil))
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New("a", KindInvalidAddress, "x")
	b := New("b", KindInvalidAddress, "y")
	assert.True(t, errors.Is(a, b))
}
