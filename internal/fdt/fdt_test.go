package fdt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalFDT constructs a valid FDT blob with a root node "/soc"
// carrying one "compatible" property, for the scenario in spec §8.4.
func buildMinimalFDT(t *testing.T, compatible string) []byte {
	t.Helper()

	var structBlock []byte
	putU32 := func(v uint32) {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		structBlock = append(structBlock, b...)
	}
	putAlignedString := func(s string) {
		structBlock = append(structBlock, s...)
		structBlock = append(structBlock, 0)
		for len(structBlock)%4 != 0 {
			structBlock = append(structBlock, 0)
		}
	}

	var stringsBlock []byte
	propNameOff := uint32(len(stringsBlock))
	stringsBlock = append(stringsBlock, "compatible"...)
	stringsBlock = append(stringsBlock, 0)

	putU32(TokenBeginNode)
	putAlignedString("soc")

	propValue := []byte(compatible)
	putU32(TokenProp)
	putU32(uint32(len(propValue)))
	putU32(propNameOff)
	structBlock = append(structBlock, propValue...)
	for len(structBlock)%4 != 0 {
		structBlock = append(structBlock, 0)
	}

	putU32(TokenEndNode)
	putU32(TokenEnd)

	const headerLen = 40
	structOff := uint32(headerLen)
	stringsOff := structOff + uint32(len(structBlock))
	total := stringsOff + uint32(len(stringsBlock))

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], headerMagic)
	binary.BigEndian.PutUint32(buf[4:8], total)
	binary.BigEndian.PutUint32(buf[8:12], structOff)
	binary.BigEndian.PutUint32(buf[12:16], stringsOff)
	binary.BigEndian.PutUint32(buf[16:20], headerLen) // off_mem_rsvmap, unused here
	binary.BigEndian.PutUint32(buf[20:24], 17)         // version
	binary.BigEndian.PutUint32(buf[24:28], 16)         // last_comp_version
	binary.BigEndian.PutUint32(buf[28:32], 0)          // boot_cpuid_phys
	binary.BigEndian.PutUint32(buf[32:36], uint32(len(stringsBlock)))
	binary.BigEndian.PutUint32(buf[36:40], uint32(len(structBlock)))

	copy(buf[structOff:], structBlock)
	copy(buf[stringsOff:], stringsBlock)
	return buf
}

func TestFromRawWrongMagicReturnsFalse(t *testing.T) {
	buf := make([]byte, 64)
	_, ok := FromRaw(buf)
	assert.False(t, ok)
}

func TestFromRawValidHeader(t *testing.T) {
	blob := buildMinimalFDT(t, "arm,pl011\x00arm,primecell\x00")
	dt, ok := FromRaw(blob)
	require.True(t, ok)
	assert.Equal(t, uint32(headerMagic), dt.Header.Magic)
}

func TestIteratorYieldsBalancedSequence(t *testing.T) {
	blob := buildMinimalFDT(t, "arm,pl011\x00arm,primecell\x00")
	dt, ok := FromRaw(blob)
	require.True(t, ok)

	require.NoError(t, dt.Validate())
}

func TestIteratorYieldsCompatibleProperty(t *testing.T) {
	blob := buildMinimalFDT(t, "arm,pl011\x00arm,primecell\x00")
	dt, ok := FromRaw(blob)
	require.True(t, ok)

	it := dt.Iterator()
	var gotCompat []string
	for {
		tok, ok := it.Next()
		require.True(t, ok)
		if tok.Kind == TokenEnd {
			break
		}
		if tok.Kind == TokenProp && tok.Name == "compatible" {
			gotCompat = CompatibleStrings(tok.Value)
		}
	}
	assert.Equal(t, []string{"arm,pl011", "arm,primecell"}, gotCompat)
}

func TestNeverReadsPastTotalSize(t *testing.T) {
	blob := buildMinimalFDT(t, "arm,pl011\x00")
	truncated := blob[:len(blob)-4] // chop off the string block's tail
	dt, ok := FromRaw(truncated)
	// TotalSize in the header now exceeds len(truncated), so FromRaw must
	// reject it rather than let an iterator walk off the end.
	assert.False(t, ok)
	assert.Nil(t, dt)
}

func TestCompatibleStringsSplitsOnNUL(t *testing.T) {
	got := CompatibleStrings([]byte("arm,gic-400\x00arm,cortex-a15-gic\x00"))
	assert.Equal(t, []string{"arm,gic-400", "arm,cortex-a15-gic"}, got)
}
