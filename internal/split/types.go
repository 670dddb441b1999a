package split

import (
	"context"
	"fmt"
	"strings"
)

// Strategy identifies the partitioning algorithm for a split request.
type Strategy string

const (
	StrategyPageRanges   Strategy = "page_ranges"
	StrategyFileSize     Strategy = "file_size"
	StrategySection      Strategy = "section"
	StrategyChapterBased Strategy = "chapter_based"
	StrategyContentAware Strategy = "content_aware"
)

// ParseStrategy maps a request string onto a known strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyPageRanges:
		return StrategyPageRanges, nil
	case StrategyFileSize:
		return StrategyFileSize, nil
	case StrategySection:
		return StrategySection, nil
	case StrategyChapterBased:
		return StrategyChapterBased, nil
	case StrategyContentAware:
		return StrategyContentAware, nil
	}
	return "", fmt.Errorf("unknown split strategy: %q", s)
}

// SectionType selects which outline entries qualify as section boundaries.
type SectionType string

const (
	SectionChapters    SectionType = "chapters"
	SectionSections    SectionType = "sections"
	SectionBookmarks   SectionType = "bookmarks"
	SectionAnnotations SectionType = "annotations"
)

// ParseSectionType maps a request string onto a section type, defaulting to bookmarks.
func ParseSectionType(s string) (SectionType, error) {
	if s == "" {
		return SectionBookmarks, nil
	}
	switch SectionType(strings.ToLower(strings.TrimSpace(s))) {
	case SectionChapters:
		return SectionChapters, nil
	case SectionSections:
		return SectionSections, nil
	case SectionBookmarks:
		return SectionBookmarks, nil
	case SectionAnnotations:
		return SectionAnnotations, nil
	}
	return "", fmt.Errorf("unknown section type: %q", s)
}

// PageRange is a validated inclusive page interval, 1-based.
type PageRange struct {
	Start int
	End   int
}

// Count returns the number of pages covered by the range.
func (r PageRange) Count() int { return r.End - r.Start + 1 }

// Pages expands the range into an ordered page list.
func (r PageRange) Pages() []int {
	out := make([]int, 0, r.Count())
	for p := r.Start; p <= r.End; p++ {
		out = append(out, p)
	}
	return out
}

// Label renders the range in the form used by file names and diagnostics.
func (r PageRange) Label() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Partition is a set of source pages destined for one output document.
type Partition struct {
	Index    int
	Ranges   []PageRange
	FileName string
}

// Pages returns the partition's page selection in order.
func (p Partition) Pages() []int {
	var out []int
	for _, r := range p.Ranges {
		out = append(out, r.Pages()...)
	}
	return out
}

// PageCount returns how many pages the partition selects.
func (p Partition) PageCount() int {
	n := 0
	for _, r := range p.Ranges {
		n += r.Count()
	}
	return n
}

// RangeLabel joins the partition's range labels for diagnostics.
func (p Partition) RangeLabel() string {
	parts := make([]string, 0, len(p.Ranges))
	for _, r := range p.Ranges {
		parts = append(parts, r.Label())
	}
	return strings.Join(parts, ",")
}

// SplitPlan is the ordered list of partitions produced by a planner.
type SplitPlan struct {
	Strategy          Strategy
	Partitions        []Partition
	PreserveBookmarks bool
	PreserveMetadata  bool
	OriginalName      string
}

// TotalPages sums the page counts across all partitions.
func (pl *SplitPlan) TotalPages() int {
	n := 0
	for _, p := range pl.Partitions {
		n += p.PageCount()
	}
	return n
}

// OutputArtifact is one serialized output document staged on disk.
type OutputArtifact struct {
	FileName  string
	PageCount int
	SizeBytes int64
	Path      string
}

// OutlineEntry is one node of a document outline, flattened with its depth.
type OutlineEntry struct {
	Title string
	Page  int
	Level int
}

// ContentConfig tunes the content-aware boundary heuristics.
type ContentConfig struct {
	// BlankCharThreshold is the stripped character count below which a page
	// counts as blank. Zero selects the default.
	BlankCharThreshold int `json:"blank_char_threshold"`
	// DensityJumpRatio is the relative change in per-page character density
	// treated as a layout discontinuity. Zero selects the default.
	DensityJumpRatio float64 `json:"density_jump_ratio"`
}

// Params carries strategy-specific planner inputs.
type Params struct {
	Ranges            []PageRange
	ThresholdMB       float64
	SectionType       SectionType
	Content           ContentConfig
	NamePattern       string
	PreserveBookmarks bool
	PreserveMetadata  bool
	OriginalName      string
}

// Document is the handle onto a loaded PDF, exclusively owned by the
// operation processing it. Implementations live in internal/engine.
type Document interface {
	PageCount() int
	SizeBytes() int64
	Outline() []OutlineEntry
	// PageSize returns the estimated serialized byte cost of a single page.
	PageSize(page int) (int64, error)
	PageText(page int) (string, error)
	ExtractPages(pages []int, keepBookmarks, keepMetadata bool) ([]byte, error)
	Close() error
}

// Planner turns a document and parameters into an ordered SplitPlan.
type Planner interface {
	Plan(ctx context.Context, doc Document, p Params) (*SplitPlan, error)
}
