package pagerange

import (
	"errors"
	"testing"

	"github.com/local/pdfsplitd/internal/split"
)

func TestParseKeepsInputOrder(t *testing.T) {
	got, err := Parse([]string{"7-10", "1-3", "5"}, 10)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []split.PageRange{{Start: 7, End: 10}, {Start: 1, End: 3}, {Start: 5, End: 5}}
	if len(got) != len(want) {
		t.Fatalf("got %d ranges, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestParsePagesWithinBounds(t *testing.T) {
	ranges, err := Parse([]string{"1-3", "5", "8-10", "2-2"}, 10)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, r := range ranges {
		for _, p := range r.Pages() {
			if p < 1 || p > 10 {
				t.Errorf("page %d outside [1,10]", p)
			}
		}
	}
}

func TestParseDuplicatesPreserved(t *testing.T) {
	got, err := Parse([]string{"1-3", "1-3"}, 5)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 || got[0] != got[1] {
		t.Fatalf("duplicate ranges must be preserved verbatim, got %+v", got)
	}
}

func TestParseStartAfterEnd(t *testing.T) {
	_, err := Parse([]string{"3-1"}, 10)
	var oob *split.RangeOutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("want RangeOutOfBoundsError, got %v", err)
	}
}

func TestParseOutOfBounds(t *testing.T) {
	cases := []string{"0-2", "5-11", "11"}
	for _, expr := range cases {
		_, err := Parse([]string{expr}, 10)
		var oob *split.RangeOutOfBoundsError
		if !errors.As(err, &oob) {
			t.Errorf("%q: want RangeOutOfBoundsError, got %v", expr, err)
		}
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	cases := []string{"", "abc", "1-2-3", "1..3", "one-3", "4-x"}
	for _, expr := range cases {
		_, err := Parse([]string{expr}, 10)
		var syn *split.RangeSyntaxError
		if !errors.As(err, &syn) {
			t.Errorf("%q: want RangeSyntaxError, got %v", expr, err)
		}
	}
}

func TestParseEmptyListIsAutoSignal(t *testing.T) {
	got, err := Parse(nil, 10)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty input must parse to empty selection, got %+v", got)
	}
}
