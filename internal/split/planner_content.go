package split

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

// ContentAnalyzer signals structural discontinuities in a document.
// Boundary(page) reports whether a new partition should start at page.
type ContentAnalyzer interface {
	Boundary(ctx context.Context, doc Document, page int) (bool, error)
}

// ContentAwarePlanner scans pages sequentially and opens a new partition
// wherever the analyzer reports a discontinuity. Minimum partition size of one
// page is enforced. No boundaries at all is not an error: the whole document
// becomes a single partition.
type ContentAwarePlanner struct {
	// Analyzer defaults to the char-density heuristic when nil.
	Analyzer ContentAnalyzer
}

func (pl *ContentAwarePlanner) Plan(ctx context.Context, doc Document, p Params) (*SplitPlan, error) {
	total := doc.PageCount()
	if total == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	analyzer := pl.Analyzer
	if analyzer == nil {
		analyzer = NewDensityAnalyzer(p.Content)
	}

	cuts := []int{1}
	for page := 2; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		boundary, err := analyzer.Boundary(ctx, doc, page)
		if err != nil {
			log.Debug().Err(err).Int("page", page).Msg("content analysis failed; no boundary")
			continue
		}
		if boundary && page > cuts[len(cuts)-1] {
			cuts = append(cuts, page)
		}
	}

	plan := &SplitPlan{
		Strategy:          StrategyContentAware,
		PreserveBookmarks: p.PreserveBookmarks,
		PreserveMetadata:  p.PreserveMetadata,
		OriginalName:      p.OriginalName,
	}
	for i, start := range cuts {
		end := total
		if i+1 < len(cuts) {
			end = cuts[i+1] - 1
		}
		r := PageRange{Start: start, End: end}
		plan.Partitions = append(plan.Partitions, Partition{
			Index:    i,
			Ranges:   []PageRange{r},
			FileName: RenderName(p.NamePattern, p.OriginalName, i+1, []PageRange{r}),
		})
	}
	return plan, nil
}

const (
	defaultBlankCharThreshold = 24
	defaultDensityJumpRatio   = 4.0
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// densityAnalyzer flags blank pages and large jumps in per-page character
// density as boundaries.
type densityAnalyzer struct {
	blankThreshold int
	jumpRatio      float64
}

// NewDensityAnalyzer builds the default content heuristic from config.
func NewDensityAnalyzer(cfg ContentConfig) ContentAnalyzer {
	a := &densityAnalyzer{blankThreshold: cfg.BlankCharThreshold, jumpRatio: cfg.DensityJumpRatio}
	if a.blankThreshold <= 0 {
		a.blankThreshold = defaultBlankCharThreshold
	}
	if a.jumpRatio <= 1 {
		a.jumpRatio = defaultDensityJumpRatio
	}
	return a
}

func (a *densityAnalyzer) Boundary(ctx context.Context, doc Document, page int) (bool, error) {
	cur, err := a.charCount(doc, page)
	if err != nil {
		return false, err
	}
	if cur < a.blankThreshold {
		return true, nil
	}
	prev, err := a.charCount(doc, page-1)
	if err != nil {
		return false, err
	}
	// A blank predecessor already opened a boundary at this page or earlier.
	if prev < a.blankThreshold {
		return true, nil
	}
	hi, lo := float64(cur), float64(prev)
	if lo > hi {
		hi, lo = lo, hi
	}
	return hi/lo >= a.jumpRatio, nil
}

func (a *densityAnalyzer) charCount(doc Document, page int) (int, error) {
	text, err := doc.PageText(page)
	if err != nil {
		return 0, err
	}
	return len(whitespaceRegex.ReplaceAllString(text, "")), nil
}
