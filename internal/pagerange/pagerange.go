// Package pagerange parses and validates human-readable page range
// expressions like "1-3", "5", "7-10". Pure functions, no side effects.
package pagerange

import (
	"strconv"
	"strings"

	"github.com/local/pdfsplitd/internal/split"
)

// Parse turns a list of range expressions into validated PageRanges,
// preserving input order. Duplicate and overlapping ranges are kept verbatim.
// An empty input list returns an empty slice; the caller treats that as the
// "auto" signal.
func Parse(exprs []string, totalPages int) ([]split.PageRange, error) {
	out := make([]split.PageRange, 0, len(exprs))
	for _, expr := range exprs {
		r, err := parseOne(expr, totalPages)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseOne(expr string, totalPages int) (split.PageRange, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return split.PageRange{}, &split.RangeSyntaxError{Expr: expr}
	}
	var startTok, endTok string
	if i := strings.Index(s, "-"); i >= 0 {
		startTok = strings.TrimSpace(s[:i])
		endTok = strings.TrimSpace(s[i+1:])
		if strings.Contains(endTok, "-") {
			return split.PageRange{}, &split.RangeSyntaxError{Expr: expr}
		}
	} else {
		startTok, endTok = s, s
	}
	start, err := strconv.Atoi(startTok)
	if err != nil {
		return split.PageRange{}, &split.RangeSyntaxError{Expr: expr}
	}
	end, err := strconv.Atoi(endTok)
	if err != nil {
		return split.PageRange{}, &split.RangeSyntaxError{Expr: expr}
	}
	if start < 1 || start > end || end > totalPages {
		return split.PageRange{}, &split.RangeOutOfBoundsError{Expr: expr, Start: start, End: end, TotalPages: totalPages}
	}
	return split.PageRange{Start: start, End: end}, nil
}
