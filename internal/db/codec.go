package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat32 packs v as little-endian FLOAT32, the layout FT vector fields expect.
func EncodeFloat32(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeFloat32 reverses EncodeFloat32.
func DecodeFloat32(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("float32 blob length %d is not a multiple of 4", len(s))
	}
	out := make([]float32, len(s)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return out, nil
}
