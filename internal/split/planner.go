package split

import "fmt"

// Planners returns the lookup table binding each strategy to its planner.
// The chapter_based variant reuses the section planner pinned to chapter depth.
func Planners() map[Strategy]Planner {
	return map[Strategy]Planner{
		StrategyPageRanges:   &PageRangePlanner{},
		StrategyFileSize:     &SizeThresholdPlanner{},
		StrategySection:      &SectionPlanner{},
		StrategyChapterBased: &SectionPlanner{ForceType: SectionChapters},
		StrategyContentAware: &ContentAwarePlanner{},
	}
}

// PlannerFor resolves one strategy from the lookup table.
func PlannerFor(s Strategy) (Planner, error) {
	p, ok := Planners()[s]
	if !ok {
		return nil, fmt.Errorf("no planner bound to strategy %q", s)
	}
	return p, nil
}
