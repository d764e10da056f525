package audio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

func newTestSynth(t *testing.T, volume float32) *SurfSynth {
	t.Helper()
	s, err := NewSurfSynth(256, volume, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewSurfSynth error: %v", err)
	}
	return s
}

func TestNewSurfSynth_Invalid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name string
		n    int
		rng  *rand.Rand
	}{
		{"not power of two", 300, rng},
		{"too small", 8, rng},
		{"nil rng", 256, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSurfSynth(tt.n, 1, tt.rng); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSurfSynth_SilentAtZeroLevel(t *testing.T) {
	s := newTestSynth(t, 1)
	out := s.Next()
	if len(out) != s.BlockLen() {
		t.Fatalf("block length %d, want %d", len(out), s.BlockLen())
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
}

func TestSurfSynth_FollowsLevel(t *testing.T) {
	s := newTestSynth(t, 1)
	s.SetLevel(FullScaleRMS)

	var prev float32
	for i := 0; i < 50; i++ {
		out := s.Next()
		for _, v := range out {
			if math.IsNaN(float64(v)) || math.Abs(float64(v)) > 2 {
				t.Fatalf("sample out of range: %v", v)
			}
		}
		l := s.Level()
		if l < prev {
			t.Fatalf("level decreased while rising: %v -> %v", prev, l)
		}
		prev = l
	}
	if prev < 0.99 {
		t.Errorf("level = %v after 50 blocks, want close to 1", prev)
	}

	var energy float64
	for _, v := range s.Next() {
		energy += float64(v) * float64(v)
	}
	if energy == 0 {
		t.Error("expected audible output at full level")
	}
}

func TestSurfSynth_SetLevelClamps(t *testing.T) {
	tests := []struct {
		rms  float64
		want float32
	}{
		{-1, 0},
		{math.NaN(), 0},
		{FullScaleRMS / 2, 0.5},
		{FullScaleRMS * 10, 1},
	}
	for _, tt := range tests {
		s := newTestSynth(t, 1)
		s.SetLevel(tt.rms)
		s.mu.Lock()
		got := s.target
		s.mu.Unlock()
		if got != tt.want {
			t.Errorf("SetLevel(%v) target = %v, want %v", tt.rms, got, tt.want)
		}
	}
}

func TestSurfSynth_Deterministic(t *testing.T) {
	a := newTestSynth(t, 0.8)
	b := newTestSynth(t, 0.8)
	a.SetLevel(1)
	b.SetLevel(1)
	for i := 0; i < 5; i++ {
		x := append([]float32(nil), a.Next()...)
		y := b.Next()
		for j := range x {
			if x[j] != y[j] {
				t.Fatalf("block %d sample %d: %v != %v", i, j, x[j], y[j])
			}
		}
	}
}

func TestPlayer_PublishSetsLevel(t *testing.T) {
	s := newTestSynth(t, 1)
	p := NewPlayer(s)

	heights := make([]float32, 16)
	for i := range heights {
		heights[i] = FullScaleRMS
	}
	p.Publish(protocol.NewParamsFrame(1, 4, 1, 1))
	if s.target != 0 {
		t.Fatalf("params frame changed level to %v", s.target)
	}

	p.Publish(protocol.NewHeightFrame(2, 4, 0, 1, 1, heights))
	if s.target != 1 {
		t.Errorf("target = %v, want 1", s.target)
	}

	if err := p.Write(make([]float32, s.BlockLen())); err == nil {
		t.Error("expected error writing without an open stream")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on unopened player: %v", err)
	}
}
