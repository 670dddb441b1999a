package split

import (
	"context"
	"fmt"
	"sort"
)

// SectionPlanner derives partition boundaries from the document outline.
// Each qualifying entry's target page opens a new partition; the last
// boundary extends to the document end. Material before the first qualifying
// entry becomes a leading front-matter partition so coverage stays complete.
type SectionPlanner struct {
	// ForceType overrides the requested section type (used by chapter_based).
	ForceType SectionType
}

func (pl *SectionPlanner) Plan(ctx context.Context, doc Document, p Params) (*SplitPlan, error) {
	sectionType := p.SectionType
	if pl.ForceType != "" {
		sectionType = pl.ForceType
	}
	if sectionType == "" {
		sectionType = SectionBookmarks
	}

	total := doc.PageCount()
	if total == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	entries := qualifying(doc.Outline(), sectionType, total)
	if len(entries) == 0 {
		return nil, &NoStructureFoundError{SectionType: sectionType}
	}

	// One boundary per distinct target page, ascending. The first entry on a
	// page wins the title.
	titles := map[int]string{}
	pages := make([]int, 0, len(entries))
	for _, e := range entries {
		if _, seen := titles[e.Page]; !seen {
			titles[e.Page] = e.Title
			pages = append(pages, e.Page)
		}
	}
	sort.Ints(pages)
	if pages[0] > 1 {
		pages = append([]int{1}, pages...)
		titles[1] = "front_matter"
	}

	plan := &SplitPlan{
		Strategy:          StrategySection,
		PreserveBookmarks: p.PreserveBookmarks,
		PreserveMetadata:  p.PreserveMetadata,
		OriginalName:      p.OriginalName,
	}
	for i, start := range pages {
		end := total
		if i+1 < len(pages) {
			end = pages[i+1] - 1
		}
		r := PageRange{Start: start, End: end}
		name := SanitizeTitle(titles[start])
		if name == "" {
			name = RenderName(p.NamePattern, p.OriginalName, i+1, []PageRange{r})
		} else {
			name = ensurePDF(fmt.Sprintf("%02d_%s", i+1, name))
		}
		plan.Partitions = append(plan.Partitions, Partition{Index: i, Ranges: []PageRange{r}, FileName: name})
	}
	return plan, nil
}

// qualifying filters outline entries by section type and clamps targets to
// the page space. chapters = top level only, sections = two levels,
// bookmarks and annotations = every level.
func qualifying(outline []OutlineEntry, sectionType SectionType, total int) []OutlineEntry {
	maxLevel := 0
	switch sectionType {
	case SectionChapters:
		maxLevel = 1
	case SectionSections:
		maxLevel = 2
	}
	var out []OutlineEntry
	for _, e := range outline {
		if e.Page < 1 || e.Page > total {
			continue
		}
		if maxLevel > 0 && e.Level > maxLevel {
			continue
		}
		out = append(out, e)
	}
	return out
}
