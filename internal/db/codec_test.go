package db

import "testing"

func TestEncodeFloat32_RoundTrip(t *testing.T) {
	in := []float32{1.0, -0.5, 0, 3.25}
	blob := EncodeFloat32(in)
	if len(blob) != 16 {
		t.Fatalf("blob length = %d, want 16", len(blob))
	}
	// 1.0 = 0x3F800000 little-endian
	if blob[0] != 0x00 || blob[3] != 0x3F {
		t.Errorf("unexpected byte layout % x", blob[:4])
	}

	out, err := DecodeFloat32(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeFloat32_BadLength(t *testing.T) {
	if _, err := DecodeFloat32("abc"); err == nil {
		t.Fatal("expected error")
	}
}
