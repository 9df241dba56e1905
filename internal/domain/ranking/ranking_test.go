package ranking

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

func TestIsValid(t *testing.T) {
	for _, p := range []Policy{Min, Max} {
		if !p.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", p)
		}
	}
	for _, p := range []Policy{"", "avg", "MIN", "mean"} {
		if p.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", p)
		}
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("max")
	if err != nil || p != Max {
		t.Fatalf("Parse(max) = (%q, %v)", p, err)
	}
	_, err = Parse("avg")
	if !errors.Is(err, domain.ErrUnknownRanking) {
		t.Fatalf("Parse(avg) err = %v, want ErrUnknownRanking", err)
	}
}

func TestBetter(t *testing.T) {
	tests := []struct {
		p         Policy
		cand, cur float64
		want      bool
	}{
		{Min, 0.1, 0.4, true},
		{Min, 0.4, 0.1, false},
		{Min, 0.3, 0.3, false},
		{Max, 0.9, 0.4, true},
		{Max, 0.4, 0.9, false},
		{Max, 0.5, 0.5, false},
	}
	for _, tc := range tests {
		if got := tc.p.Better(tc.cand, tc.cur); got != tc.want {
			t.Errorf("%s.Better(%v, %v) = %v, want %v", tc.p, tc.cand, tc.cur, got, tc.want)
		}
	}
}
