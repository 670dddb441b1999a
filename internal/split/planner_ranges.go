package split

import "context"

// PageRangePlanner emits one partition per supplied range, in input order.
// Ranges are not sorted and not deduplicated: duplicate or overlapping input
// yields duplicate partitions. An empty selection falls back to one partition
// per page, covering the whole document.
type PageRangePlanner struct{}

func (pl *PageRangePlanner) Plan(ctx context.Context, doc Document, p Params) (*SplitPlan, error) {
	ranges := p.Ranges
	if len(ranges) == 0 {
		total := doc.PageCount()
		ranges = make([]PageRange, 0, total)
		for page := 1; page <= total; page++ {
			ranges = append(ranges, PageRange{Start: page, End: page})
		}
	}
	plan := &SplitPlan{
		Strategy:          StrategyPageRanges,
		PreserveBookmarks: p.PreserveBookmarks,
		PreserveMetadata:  p.PreserveMetadata,
		OriginalName:      p.OriginalName,
	}
	for i, r := range ranges {
		plan.Partitions = append(plan.Partitions, Partition{
			Index:    i,
			Ranges:   []PageRange{r},
			FileName: RenderName(p.NamePattern, p.OriginalName, i+1, []PageRange{r}),
		})
	}
	return plan, nil
}
