package protocol

import (
	"errors"
	"testing"
)

func testHeights(n int) []float32 {
	h := make([]float32, n*n)
	for i := range h {
		h[i] = float32(i%17)*0.25 - 2
	}
	return h
}

func TestFrame_EncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame *HeightFrame
	}{
		{
			name:  "HEIGHTS 1x1",
			frame: NewHeightFrame(1, 1, 0, 1, 1.5, []float32{0.5}),
		},
		{
			name:  "HEIGHTS 8x8",
			frame: NewHeightFrame(42, 8, 12.5, 2, 1.5, testHeights(8)),
		},
		{
			name:  "HEIGHTS 64x64",
			frame: NewHeightFrame(0xFFFFFFFF, 64, 1e6, 0.3, 0, testHeights(64)),
		},
		{
			name:  "PARAMS frame",
			frame: NewParamsFrame(7, 128, 3, 0.75),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.frame.Encode()
			if len(encoded) != tt.frame.EncodedLen() {
				t.Fatalf("encoded length %d, EncodedLen %d", len(encoded), tt.frame.EncodedLen())
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}

			if decoded.Type != tt.frame.Type {
				t.Errorf("Type: 0x%02x != 0x%02x", decoded.Type, tt.frame.Type)
			}
			if decoded.Seq != tt.frame.Seq {
				t.Errorf("Seq: %d != %d", decoded.Seq, tt.frame.Seq)
			}
			if decoded.Size != tt.frame.Size {
				t.Errorf("Size: %d != %d", decoded.Size, tt.frame.Size)
			}
			if decoded.Time != tt.frame.Time {
				t.Errorf("Time: %v != %v", decoded.Time, tt.frame.Time)
			}
			if decoded.Amplitude != tt.frame.Amplitude || decoded.Choppiness != tt.frame.Choppiness {
				t.Errorf("scalars: (%v, %v) != (%v, %v)",
					decoded.Amplitude, decoded.Choppiness, tt.frame.Amplitude, tt.frame.Choppiness)
			}
			if len(decoded.Heights) != len(tt.frame.Heights) {
				t.Fatalf("Heights length: %d != %d", len(decoded.Heights), len(tt.frame.Heights))
			}
			for i := range tt.frame.Heights {
				if decoded.Heights[i] != tt.frame.Heights[i] {
					t.Errorf("Heights[%d]: %v != %v", i, decoded.Heights[i], tt.frame.Heights[i])
				}
			}
		})
	}
}

func TestFrame_CopiesHeights(t *testing.T) {
	h := testHeights(4)
	f := NewHeightFrame(1, 4, 0, 1, 1, h)
	h[0] = 99
	if f.Heights[0] == 99 {
		t.Error("frame aliases caller's height slice")
	}
}

func TestFrame_CRCDetectsCorruption(t *testing.T) {
	frame := NewHeightFrame(1, 4, 0.5, 1, 1, testHeights(4))
	encoded := frame.Encode()

	// Corrupt one sample byte
	encoded[HeaderSize+3] ^= 0xFF

	if _, err := DecodeFrame(encoded); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestFrame_TooShort(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x01, 0x02}); !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}

	// Truncated sample payload
	encoded := NewHeightFrame(1, 4, 0, 1, 1, testHeights(4)).Encode()
	if _, err := DecodeFrame(encoded[:len(encoded)-10]); !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame for truncated frame, got %v", err)
	}
}

func TestFrame_SizeMismatch(t *testing.T) {
	// 16 samples declared for a 5x5 grid
	f := NewHeightFrame(1, 5, 0, 1, 1, testHeights(4))
	if _, err := DecodeFrame(f.Encode()); err == nil {
		t.Error("expected error for sample count not matching size")
	}

	p := NewParamsFrame(1, 4, 1, 1)
	p.Heights = []float32{1}
	if _, err := DecodeFrame(p.Encode()); err == nil {
		t.Error("expected error for params frame carrying samples")
	}

	u := NewParamsFrame(1, 4, 1, 1)
	u.Type = 0x7F
	if _, err := DecodeFrame(u.Encode()); err == nil {
		t.Error("expected error for unknown frame type")
	}
}

func TestFrame_TypeName(t *testing.T) {
	tests := []struct {
		typ  byte
		want string
	}{
		{TypeHeights, "HEIGHTS"},
		{TypeParams, "PARAMS"},
		{0x10, "UNKNOWN(0x10)"},
	}
	for _, tt := range tests {
		f := &HeightFrame{Type: tt.typ}
		if got := f.TypeName(); got != tt.want {
			t.Errorf("TypeName(0x%02x) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
