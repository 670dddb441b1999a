package split

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultThresholdMB applies when a file_size request carries no threshold.
const DefaultThresholdMB = 10.0

// SizeThresholdPlanner walks pages in order accumulating estimated byte cost
// and closes the current partition when the next page would exceed the
// threshold. A single oversized page still forms its own partition; pages are
// never split across partitions. Output covers every page exactly once.
type SizeThresholdPlanner struct{}

func (pl *SizeThresholdPlanner) Plan(ctx context.Context, doc Document, p Params) (*SplitPlan, error) {
	thresholdMB := p.ThresholdMB
	if thresholdMB <= 0 {
		thresholdMB = DefaultThresholdMB
	}
	threshold := int64(thresholdMB * 1024 * 1024)
	total := doc.PageCount()
	if total == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	plan := &SplitPlan{
		Strategy:          StrategyFileSize,
		PreserveBookmarks: p.PreserveBookmarks,
		PreserveMetadata:  p.PreserveMetadata,
		OriginalName:      p.OriginalName,
	}

	// Proportional fallback when single-page introspection fails.
	fallback := doc.SizeBytes() / int64(total)
	if fallback <= 0 {
		fallback = 1
	}

	start := 1
	var acc int64
	for page := 1; page <= total; page++ {
		sz, err := doc.PageSize(page)
		if err != nil || sz <= 0 {
			if err != nil {
				log.Debug().Err(err).Int("page", page).Msg("page size probe failed; using proportional estimate")
			}
			sz = fallback
		}
		if acc > 0 && acc+sz > threshold {
			plan.Partitions = append(plan.Partitions, pl.partition(p, len(plan.Partitions), start, page-1))
			start = page
			acc = 0
		}
		acc += sz
	}
	plan.Partitions = append(plan.Partitions, pl.partition(p, len(plan.Partitions), start, total))
	return plan, nil
}

func (pl *SizeThresholdPlanner) partition(p Params, index, start, end int) Partition {
	r := PageRange{Start: start, End: end}
	return Partition{
		Index:    index,
		Ranges:   []PageRange{r},
		FileName: RenderName(p.NamePattern, p.OriginalName, index+1, []PageRange{r}),
	}
}
