// Package fdt implements a zero-allocation, zero-copy parser over the
// Flattened Devicetree structure block (Devicetree Specification v0.4).
package fdt

import (
	"encoding/binary"

	"github.com/behrlich/aetheros/internal/kerrors"
)

// Token kinds in the structure block's big-endian 32-bit token stream.
const (
	TokenBeginNode uint32 = 1
	TokenEndNode   uint32 = 2
	TokenProp      uint32 = 3
	TokenNop       uint32 = 4
	TokenEnd       uint32 = 9
)

const headerMagic uint32 = 0xd00dfeed
const headerSize = 40 // ten 32-bit fields

// Header mirrors the FDT header exactly: magic, total size, and the
// structure/strings block offsets.
type Header struct {
	Magic           uint32
	TotalSize       uint32
	OffDtStruct     uint32
	OffDtStrings    uint32
	OffMemRsvmap    uint32
	Version         uint32
	LastCompVersion uint32
	BootCPUIDPhys   uint32
	SizeDtStrings   uint32
	SizeDtStruct    uint32
}

// DeviceTree is a read-only view over a backing byte slice with a parsed
// header. It never copies the backing slice.
type DeviceTree struct {
	raw    []byte
	Header Header
}

// FromRaw validates the header magic and the 4-byte alignment of the
// structure block, returning
// (nil, false) if either check fails — matching spec's `from_raw`
// contract exactly (no error type, just a boolean).
func FromRaw(b []byte) (*DeviceTree, bool) {
	if len(b) < headerSize {
		return nil, false
	}

	h := Header{
		Magic:           binary.BigEndian.Uint32(b[0:4]),
		TotalSize:       binary.BigEndian.Uint32(b[4:8]),
		OffDtStruct:     binary.BigEndian.Uint32(b[8:12]),
		OffDtStrings:    binary.BigEndian.Uint32(b[12:16]),
		OffMemRsvmap:    binary.BigEndian.Uint32(b[16:20]),
		Version:         binary.BigEndian.Uint32(b[20:24]),
		LastCompVersion: binary.BigEndian.Uint32(b[24:28]),
		BootCPUIDPhys:   binary.BigEndian.Uint32(b[28:32]),
		SizeDtStrings:   binary.BigEndian.Uint32(b[32:36]),
		SizeDtStruct:    binary.BigEndian.Uint32(b[36:40]),
	}

	if h.Magic != headerMagic {
		return nil, false
	}
	// The blob's total length need not be a multiple of 4 (the strings
	// block is unpadded), but every token read must be 4-byte aligned, so
	// the structure block must start on a 4-byte boundary.
	if h.OffDtStruct%4 != 0 {
		return nil, false
	}
	if uint64(h.OffDtStruct) > uint64(h.TotalSize) || uint64(h.OffDtStrings) > uint64(h.TotalSize) {
		return nil, false
	}
	if uint64(len(b)) < uint64(h.TotalSize) {
		return nil, false
	}

	return &DeviceTree{raw: b[:h.TotalSize], Header: h}, true
}

// Token is one structure-block event.
type Token struct {
	Kind  uint32
	Name  string // BeginNode: node name. Property: property name.
	Value []byte // Property: raw value bytes.
}

// Iterator is a lazy, restartable pull-style producer over the structure
// block, grounded on the teacher's explicit-offset binary.BigEndian reads
// in internal/uapi/marshal.go, generalized from a fixed struct to a token
// stream.
type Iterator struct {
	dt  *DeviceTree
	pos uint32 // offset into dt.raw, relative to start of struct block
	err bool
}

// Iterator returns a fresh iterator positioned at the start of the
// structure block.
func (dt *DeviceTree) Iterator() *Iterator {
	return &Iterator{dt: dt, pos: dt.Header.OffDtStruct}
}

func (it *Iterator) readU32(off uint32) (uint32, bool) {
	if off%4 != 0 {
		return 0, false
	}
	if uint64(off)+4 > uint64(it.dt.Header.TotalSize) {
		return 0, false
	}
	return binary.BigEndian.Uint32(it.dt.raw[off : off+4]), true
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

func (it *Iterator) string(off uint32) (string, bool) {
	base := it.dt.Header.OffDtStrings
	start := uint64(base) + uint64(off)
	if start >= uint64(it.dt.Header.TotalSize) {
		return "", false
	}
	end := start
	for end < uint64(len(it.dt.raw)) && it.dt.raw[end] != 0 {
		end++
	}
	if end >= uint64(len(it.dt.raw)) {
		return "", false
	}
	return string(it.dt.raw[start:end]), true
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Next pulls the next token from the stream, skipping NOPs internally.
// Returns (Token{Kind: TokenEnd}, true) at the end. A malformed or
// out-of-bounds token makes it return ok == false, and every later call
// returns ok == false as well; there is no separate Error token.
func (it *Iterator) Next() (Token, bool) {
	if it.err {
		return Token{}, false
	}

	for {
		kind, ok := it.readU32(it.pos)
		if !ok {
			it.err = true
			return Token{Kind: TokenEnd}, false
		}
		it.pos += 4

		switch kind {
		case TokenNop:
			continue

		case TokenBeginNode:
			name, nameOK := it.readCString(it.pos)
			if !nameOK {
				it.err = true
				return Token{}, false
			}
			it.pos = align4(it.pos + uint32(len(name)) + 1)
			return Token{Kind: TokenBeginNode, Name: name}, true

		case TokenEndNode:
			return Token{Kind: TokenEndNode}, true

		case TokenProp:
			length, lenOK := it.readU32(it.pos)
			if !lenOK {
				it.err = true
				return Token{}, false
			}
			it.pos += 4
			nameOff, nameOffOK := it.readU32(it.pos)
			if !nameOffOK {
				it.err = true
				return Token{}, false
			}
			it.pos += 4

			if uint64(it.pos)+uint64(length) > uint64(it.dt.Header.TotalSize) {
				it.err = true
				return Token{}, false
			}
			value := it.dt.raw[it.pos : it.pos+length]
			it.pos = align4(it.pos + length)

			name, nameOK := it.string(nameOff)
			if !nameOK {
				it.err = true
				return Token{}, false
			}
			return Token{Kind: TokenProp, Name: name, Value: value}, true

		case TokenEnd:
			return Token{Kind: TokenEnd}, true

		default:
			it.err = true
			return Token{}, false
		}
	}
}

// readCString reads a NUL-terminated string starting at off within raw,
// bounds-checked against TotalSize.
func (it *Iterator) readCString(off uint32) (string, bool) {
	start := uint64(off)
	if start >= uint64(it.dt.Header.TotalSize) {
		return "", false
	}
	end := start
	for end < uint64(len(it.dt.raw)) && it.dt.raw[end] != 0 {
		end++
	}
	if end >= uint64(len(it.dt.raw)) {
		return "", false
	}
	return string(it.dt.raw[start:end]), true
}

// CompatibleStrings splits a `compatible` property's null-separated value
// list into individual strings, per spec §4.8.
func CompatibleStrings(value []byte) []string {
	var out []string
	start := 0
	for i, b := range value {
		if b == 0 {
			if i > start {
				out = append(out, string(value[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(value) {
		out = append(out, cString(value[start:]))
	}
	return out
}

// Validate walks the whole structure block and confirms it emits a
// balanced BeginNode/EndNode sequence terminated by End, never reading
// past TotalSize — the invariant spec §8 requires of every valid FDT.
func (dt *DeviceTree) Validate() error {
	it := dt.Iterator()
	depth := 0
	for {
		tok, ok := it.Next()
		if !ok {
			return kerrors.New("fdt.Validate", kerrors.KindFDTInvalid, "malformed token stream")
		}
		switch tok.Kind {
		case TokenBeginNode:
			depth++
		case TokenEndNode:
			depth--
			if depth < 0 {
				return kerrors.New("fdt.Validate", kerrors.KindFDTInvalid, "unbalanced EndNode")
			}
		case TokenEnd:
			if depth != 0 {
				return kerrors.New("fdt.Validate", kerrors.KindFDTInvalid, "unbalanced node nesting at End")
			}
			return nil
		}
	}
}
