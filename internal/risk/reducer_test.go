package risk

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func newTestReducer() *Reducer {
	return NewReducer(Config{Decay: 0.85, Floor: 0.30}, zerolog.Nop())
}

func TestFactorSchedule(t *testing.T) {
	r := newTestReducer()
	cases := []struct {
		failures int
		want     float64
	}{
		{0, 1.0},
		{1, 0.85},
		{2, 0.7225},
		{3, 0.614125},
	}
	for _, tc := range cases {
		if got := r.Factor(tc.failures); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Factor(%d) = %f, want %f", tc.failures, got, tc.want)
		}
	}
}

func TestFactorHitsFloor(t *testing.T) {
	r := newTestReducer()
	// 0.85^8 is about 0.272, already below the 0.30 floor.
	if got := r.Factor(8); got != 0.30 {
		t.Errorf("Factor(8) = %f, want floor 0.30", got)
	}
	if got := r.Factor(100); got != 0.30 {
		t.Errorf("Factor(100) = %f, want floor 0.30", got)
	}
}

func TestFactorMonotoneNonIncreasing(t *testing.T) {
	r := newTestReducer()
	prev := r.Factor(0)
	for k := 1; k <= 20; k++ {
		cur := r.Factor(k)
		if cur > prev {
			t.Fatalf("Factor(%d) = %f rose above Factor(%d) = %f", k, cur, k-1, prev)
		}
		prev = cur
	}
}

func TestNegativeFailuresTreatedAsZero(t *testing.T) {
	r := newTestReducer()
	if got := r.Factor(-3); got != 1.0 {
		t.Errorf("Factor(-3) = %f, want 1.0", got)
	}
}

func TestNextStake(t *testing.T) {
	r := newTestReducer()
	if got := r.NextStake(10, 2); math.Abs(got-7.225) > 1e-9 {
		t.Errorf("NextStake(10, 2) = %f, want 7.225", got)
	}
}

func TestNewReducerRejectsBadConfig(t *testing.T) {
	r := NewReducer(Config{Decay: 1.5, Floor: -1}, zerolog.Nop())
	if got := r.Factor(1); got != 0.85 {
		t.Errorf("Factor(1) with defaulted config = %f, want 0.85", got)
	}
}
