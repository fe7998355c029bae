package bytecode

import (
	"testing"

	"github.com/skinklang/skink/internal/object"
)

// FuzzUnmarshalChunk feeds arbitrary bytes to the wire decoder. Malformed
// input has to surface as an error, never a panic, and anything that
// decodes has to survive instruction decoding and re-encoding.
func FuzzUnmarshalChunk(f *testing.F) {
	seed := NewChunk("seed", FormatCurrent)
	seed.WriteOp(OP_CONST, 1)
	seed.WriteU16(uint16(seed.AddConstant(&object.Integer{Value: 5})), 1)
	seed.WriteOp(OP_CONST, 1)
	seed.WriteU16(uint16(seed.AddConstant(&object.String{Value: "hi"})), 1)
	seed.WriteOp(OP_ADD, 1)
	seed.WriteOp(OP_HALT, 2)
	if data, err := MarshalChunk(seed); err == nil {
		f.Add(data)
	}

	fnChunk := NewChunk("body", FormatLegacy)
	fnChunk.WriteOp(OP_RETURN, 1)
	outer := NewChunk("outer", FormatLegacy)
	outer.WriteOp(OP_CONST, 1)
	outer.WriteU16(uint16(outer.AddConstant(NewFunction("f", []string{"a"}, fnChunk))), 1)
	outer.WriteOp(OP_HALT, 1)
	if data, err := MarshalChunk(outer); err == nil {
		f.Add(data)
	}

	f.Add([]byte{})
	f.Add([]byte{0xa0})
	f.Add([]byte("not cbor at all"))

	f.Fuzz(func(t *testing.T, data []byte) {
		c, err := UnmarshalChunk(data)
		if err != nil {
			return
		}
		if !c.Format.Known() {
			t.Fatalf("decoded chunk carries unknown format %d", c.Format)
		}
		// Truncated operands are an error, not a crash
		_, _ = Decode(c)
		if _, err := MarshalChunk(c); err != nil {
			t.Fatalf("re-encoding a decoded chunk failed: %v", err)
		}
	})
}
