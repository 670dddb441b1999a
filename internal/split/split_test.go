package split

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeDoc is an in-memory Document for planner and executor tests.
type fakeDoc struct {
	pages     int
	size      int64
	pageSizes []int64
	pageTexts []string
	outline   []OutlineEntry
	extracted [][]int
	failPages map[int]bool
	closed    bool
}

func (d *fakeDoc) PageCount() int          { return d.pages }
func (d *fakeDoc) SizeBytes() int64        { return d.size }
func (d *fakeDoc) Outline() []OutlineEntry { return d.outline }

func (d *fakeDoc) PageSize(page int) (int64, error) {
	if d.pageSizes == nil {
		return 0, errors.New("no page sizes")
	}
	return d.pageSizes[page-1], nil
}

func (d *fakeDoc) PageText(page int) (string, error) {
	if d.pageTexts == nil {
		return "", errors.New("no page texts")
	}
	return d.pageTexts[page-1], nil
}

func (d *fakeDoc) ExtractPages(pages []int, keepBookmarks, keepMetadata bool) ([]byte, error) {
	for _, p := range pages {
		if d.failPages[p] {
			return nil, fmt.Errorf("extract page %d failed", p)
		}
	}
	d.extracted = append(d.extracted, pages)
	out := make([]byte, 0, len(pages)*4)
	for _, p := range pages {
		out = append(out, []byte(fmt.Sprintf("p%d;", p))...)
	}
	return out, nil
}

func (d *fakeDoc) Close() error { d.closed = true; return nil }

// memSink stages artifacts in memory.
type memSink struct {
	staged map[string][]byte
}

func newMemSink() *memSink { return &memSink{staged: map[string][]byte{}} }

func (s *memSink) Stage(fileName string, data []byte) (string, error) {
	s.staged[fileName] = data
	return "mem://" + fileName, nil
}

func coveredPages(plan *SplitPlan) []int {
	var out []int
	for _, p := range plan.Partitions {
		out = append(out, p.Pages()...)
	}
	return out
}

func TestPageRangePlannerScenario(t *testing.T) {
	doc := &fakeDoc{pages: 10}
	p := Params{
		Ranges:       []PageRange{{1, 3}, {4, 6}, {7, 10}},
		OriginalName: "report.pdf",
	}
	plan, err := (&PageRangePlanner{}).Plan(context.Background(), doc, p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Partitions) != 3 {
		t.Fatalf("got %d partitions, want 3", len(plan.Partitions))
	}
	wantCounts := []int{3, 3, 4}
	for i, part := range plan.Partitions {
		if part.PageCount() != wantCounts[i] {
			t.Errorf("partition %d: %d pages, want %d", i, part.PageCount(), wantCounts[i])
		}
	}
	if plan.TotalPages() != 10 {
		t.Errorf("total pages %d, want 10", plan.TotalPages())
	}
}

func TestPageRangePlannerEmptySelection(t *testing.T) {
	doc := &fakeDoc{pages: 5}
	plan, err := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{OriginalName: "a.pdf"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Partitions) != 5 {
		t.Fatalf("got %d partitions, want 5", len(plan.Partitions))
	}
	for i, part := range plan.Partitions {
		pages := part.Pages()
		if len(pages) != 1 || pages[0] != i+1 {
			t.Errorf("partition %d covers %v, want [%d]", i, pages, i+1)
		}
	}
}

func TestPageRangePlannerKeepsDuplicates(t *testing.T) {
	doc := &fakeDoc{pages: 5}
	p := Params{Ranges: []PageRange{{2, 4}, {2, 4}}}
	plan, err := (&PageRangePlanner{}).Plan(context.Background(), doc, p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Partitions) != 2 {
		t.Fatalf("duplicate ranges must yield duplicate partitions, got %d", len(plan.Partitions))
	}
}

func TestSizeThresholdPlannerCoversOnce(t *testing.T) {
	mb := int64(1024 * 1024)
	doc := &fakeDoc{
		pages:     6,
		size:      6 * mb,
		pageSizes: []int64{mb / 2, mb / 2, mb / 2, 3 * mb, mb / 4, mb / 4},
	}
	plan, err := (&SizeThresholdPlanner{}).Plan(context.Background(), doc, Params{ThresholdMB: 1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	got := coveredPages(plan)
	if len(got) != 6 {
		t.Fatalf("covered %v, want every page exactly once", got)
	}
	for i, p := range got {
		if p != i+1 {
			t.Fatalf("covered %v, want pages 1..6 in order", got)
		}
	}
	for _, part := range plan.Partitions {
		if part.PageCount() == 0 {
			t.Error("zero-page partition produced")
		}
	}
	// Page 4 is triple the threshold and must sit alone.
	var oversized *Partition
	for i := range plan.Partitions {
		for _, p := range plan.Partitions[i].Pages() {
			if p == 4 {
				oversized = &plan.Partitions[i]
			}
		}
	}
	if oversized == nil || oversized.PageCount() != 1 {
		t.Errorf("oversized page must form its own partition, got %+v", oversized)
	}
}

func TestSizeThresholdPlannerProportionalFallback(t *testing.T) {
	doc := &fakeDoc{pages: 4, size: 4 * 1024 * 1024} // no pageSizes: probe fails
	plan, err := (&SizeThresholdPlanner{}).Plan(context.Background(), doc, Params{ThresholdMB: 2})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	got := coveredPages(plan)
	if len(got) != 4 {
		t.Fatalf("covered %v, want 4 pages", got)
	}
	if len(plan.Partitions) != 2 {
		t.Errorf("got %d partitions, want 2 under proportional estimates", len(plan.Partitions))
	}
}

func TestSectionPlannerBoundaries(t *testing.T) {
	doc := &fakeDoc{
		pages: 20,
		outline: []OutlineEntry{
			{Title: "Chapter 1", Page: 3, Level: 1},
			{Title: "1.1 Intro", Page: 4, Level: 2},
			{Title: "Chapter 2", Page: 11, Level: 1},
		},
	}
	plan, err := (&SectionPlanner{}).Plan(context.Background(), doc, Params{SectionType: SectionChapters})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// front matter 1-2, chapter 1 3-10, chapter 2 11-20
	want := []PageRange{{1, 2}, {3, 10}, {11, 20}}
	if len(plan.Partitions) != len(want) {
		t.Fatalf("got %d partitions, want %d", len(plan.Partitions), len(want))
	}
	for i, part := range plan.Partitions {
		if part.Ranges[0] != want[i] {
			t.Errorf("partition %d: %+v, want %+v", i, part.Ranges[0], want[i])
		}
	}
	if plan.Partitions[1].FileName != "02_chapter_1.pdf" {
		t.Errorf("partition name %q, want sanitized title", plan.Partitions[1].FileName)
	}
}

func TestSectionPlannerAllLevels(t *testing.T) {
	doc := &fakeDoc{
		pages: 10,
		outline: []OutlineEntry{
			{Title: "A", Page: 1, Level: 1},
			{Title: "A.1", Page: 4, Level: 2},
			{Title: "A.1.1", Page: 7, Level: 3},
		},
	}
	plan, err := (&SectionPlanner{}).Plan(context.Background(), doc, Params{SectionType: SectionBookmarks})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Partitions) != 3 {
		t.Fatalf("bookmarks mode must use every level, got %d partitions", len(plan.Partitions))
	}
}

func TestSectionPlannerNoStructure(t *testing.T) {
	doc := &fakeDoc{pages: 10}
	_, err := (&SectionPlanner{}).Plan(context.Background(), doc, Params{SectionType: SectionBookmarks})
	if !IsNoStructure(err) {
		t.Fatalf("want NoStructureFoundError, got %v", err)
	}
}

func TestContentAwarePlannerBlankPageBoundary(t *testing.T) {
	long := "The quick brown fox jumps over the lazy dog, repeatedly and at length."
	doc := &fakeDoc{
		pages:     5,
		pageTexts: []string{long, long, "  ", long, long},
	}
	plan, err := (&ContentAwarePlanner{}).Plan(context.Background(), doc, Params{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// Blank page 3 opens a boundary at 3, and page 4 starts fresh after it.
	got := coveredPages(plan)
	if len(got) != 5 {
		t.Fatalf("covered %v, want all 5 pages", got)
	}
	if len(plan.Partitions) < 2 {
		t.Fatalf("blank page must introduce a boundary, got %d partitions", len(plan.Partitions))
	}
	for _, part := range plan.Partitions {
		if part.PageCount() < 1 {
			t.Error("partition below minimum size")
		}
	}
}

func TestContentAwarePlannerNoBoundaries(t *testing.T) {
	text := "Steady prose with uniform density across every page of the document."
	doc := &fakeDoc{pages: 4, pageTexts: []string{text, text, text, text}}
	plan, err := (&ContentAwarePlanner{}).Plan(context.Background(), doc, Params{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Partitions) != 1 {
		t.Fatalf("no boundaries must yield one whole-document partition, got %d", len(plan.Partitions))
	}
	if plan.Partitions[0].Ranges[0] != (PageRange{1, 4}) {
		t.Errorf("partition covers %+v, want 1-4", plan.Partitions[0].Ranges[0])
	}
}

func TestExecutorPageConservation(t *testing.T) {
	doc := &fakeDoc{pages: 10}
	plan, _ := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{
		Ranges:       []PageRange{{1, 3}, {4, 6}, {7, 10}},
		OriginalName: "r.pdf",
	})
	sink := newMemSink()
	res, err := (&Executor{}).Execute(context.Background(), doc, plan, sink, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if len(res.Artifacts) != 3 {
		t.Fatalf("got %d artifacts, want 3", len(res.Artifacts))
	}
	if res.PagesWritten() != plan.TotalPages() {
		t.Errorf("pages written %d, want %d", res.PagesWritten(), plan.TotalPages())
	}
}

func TestExecutorFailFast(t *testing.T) {
	doc := &fakeDoc{pages: 10, failPages: map[int]bool{5: true}}
	plan, _ := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{
		Ranges: []PageRange{{1, 3}, {4, 6}, {7, 10}},
	})
	res, err := (&Executor{FailFast: true}).Execute(context.Background(), doc, plan, newMemSink(), nil)
	var pe *PartitionExtractionError
	if !errors.As(err, &pe) {
		t.Fatalf("want PartitionExtractionError, got %v", err)
	}
	if pe.Index != 1 {
		t.Errorf("failing partition index %d, want 1", pe.Index)
	}
	if len(res.Artifacts) != 1 {
		t.Errorf("fail-fast should stop after the first failure, got %d artifacts", len(res.Artifacts))
	}
}

func TestExecutorBatchTolerant(t *testing.T) {
	doc := &fakeDoc{pages: 10, failPages: map[int]bool{5: true}}
	plan, _ := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{
		Ranges: []PageRange{{1, 3}, {4, 6}, {7, 10}},
	})
	res, err := (&Executor{}).Execute(context.Background(), doc, plan, newMemSink(), nil)
	if err != nil {
		t.Fatalf("batch-tolerant mode must not abort: %v", err)
	}
	if res.Success {
		t.Error("success must be false when partitions failed")
	}
	if len(res.Artifacts) != 2 || len(res.Failed) != 1 {
		t.Errorf("got %d artifacts, %d failures; want 2 and 1", len(res.Artifacts), len(res.Failed))
	}
	if res.Failed[0].Index != 1 {
		t.Errorf("failed partition index %d, want 1", res.Failed[0].Index)
	}
}

func TestExecutorProgressAndCancellation(t *testing.T) {
	doc := &fakeDoc{pages: 10}
	plan, _ := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{
		Ranges: []PageRange{{1, 3}, {4, 6}, {7, 10}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	var seen []int
	res, err := (&Executor{}).Execute(ctx, doc, plan, newMemSink(), func(done, total int) {
		seen = append(seen, done)
		if done == 1 {
			cancel()
		}
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
	if len(res.Artifacts) != 1 {
		t.Errorf("artifacts completed before cancel remain, got %d want 1", len(res.Artifacts))
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("progress callbacks %v, want [1]", seen)
	}
}

func TestExecutorTimeoutMapsToTimeoutError(t *testing.T) {
	doc := &fakeDoc{pages: 4}
	plan, _ := (&PageRangePlanner{}).Plan(context.Background(), doc, Params{
		Ranges: []PageRange{{1, 2}, {3, 4}},
	})
	// Deadline already expired before the first partition.
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := (&Executor{}).Execute(expired, doc, plan, newMemSink(), nil)
	if !IsTimeout(err) {
		t.Fatalf("want TimeoutError, got %v", err)
	}
}
