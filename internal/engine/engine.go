// Package engine implements the PDF-library collaborator behind
// split.Document, backed by pdfcpu for structure and page extraction and
// go-fitz (MuPDF) for per-page text.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitd/internal/split"
)

// Engine loads PDF bytes into exclusively-owned Document handles.
type Engine struct {
	conf *model.Configuration
}

// New returns an Engine with relaxed validation, matching what real-world
// uploads need.
func New() *Engine {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Engine{conf: conf}
}

// Load parses and validates the document and returns its handle. The caller
// owns the handle and must Close it.
func (e *Engine) Load(ctx context.Context, data []byte) (split.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if pdfCtx.PageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	return &document{
		data:      data,
		conf:      e.conf,
		pdfCtx:    pdfCtx,
		pages:     pdfCtx.PageCount,
		pageSizes: map[int]int64{},
	}, nil
}

type document struct {
	data   []byte
	conf   *model.Configuration
	pdfCtx *model.Context
	pages  int

	outlineOnce sync.Once
	outline     []split.OutlineEntry

	mu        sync.Mutex
	fitzDoc   *fitz.Document
	pageSizes map[int]int64
}

func (d *document) PageCount() int   { return d.pages }
func (d *document) SizeBytes() int64 { return int64(len(d.data)) }

// Outline flattens the document bookmarks with their nesting depth.
// Documents without an outline return nil.
func (d *document) Outline() []split.OutlineEntry {
	d.outlineOnce.Do(func() {
		bms, err := api.Bookmarks(bytes.NewReader(d.data), d.conf)
		if err != nil {
			log.Debug().Err(err).Msg("bookmark read failed; treating document as unstructured")
			return
		}
		d.outline = flattenBookmarks(bms, 1)
	})
	return d.outline
}

func flattenBookmarks(bms []pdfcpu.Bookmark, level int) []split.OutlineEntry {
	var out []split.OutlineEntry
	for _, bm := range bms {
		out = append(out, split.OutlineEntry{Title: bm.Title, Page: bm.PageFrom, Level: level})
		out = append(out, flattenBookmarks(bm.Kids, level+1)...)
	}
	return out
}

// PageSize measures one page's serialized byte cost by extracting it through
// the library. Genuine introspection, not a guess from total file size.
func (d *document) PageSize(page int) (int64, error) {
	d.mu.Lock()
	if sz, ok := d.pageSizes[page]; ok {
		d.mu.Unlock()
		return sz, nil
	}
	d.mu.Unlock()

	r, err := api.ExtractPage(d.pdfCtx, page)
	if err != nil {
		return 0, fmt.Errorf("extract page %d: %w", page, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read page %d: %w", page, err)
	}
	sz := int64(len(b))
	d.mu.Lock()
	d.pageSizes[page] = sz
	d.mu.Unlock()
	return sz, nil
}

// PageText extracts a single page's text via MuPDF. 1-based page index.
func (d *document) PageText(page int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fitzDoc == nil {
		fd, err := fitz.NewFromMemory(d.data)
		if err != nil {
			return "", fmt.Errorf("open pdf for text extraction: %w", err)
		}
		d.fitzDoc = fd
	}
	text, err := d.fitzDoc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", page, err)
	}
	return text, nil
}

// ExtractPages serializes the selected pages into a new document. Bookmarks
// are stripped when keepBookmarks is false; the source Info dictionary is
// dropped when keepMetadata is false.
func (d *document) ExtractPages(pages []int, keepBookmarks, keepMetadata bool) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("empty page selection")
	}
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.data), &buf, pageTokens(pages), d.conf); err != nil {
		return nil, fmt.Errorf("trim pages: %w", err)
	}
	out := buf.Bytes()
	if !keepBookmarks {
		var stripped bytes.Buffer
		if err := api.RemoveBookmarks(bytes.NewReader(out), &stripped, d.conf); err == nil {
			out = stripped.Bytes()
		}
		// Documents without an outline fail the removal; the trimmed bytes
		// are already bookmark-free then.
	}
	if !keepMetadata {
		scrubbed, err := stripInfoDict(out, d.conf)
		if err != nil {
			return nil, err
		}
		out = scrubbed
	}
	return out, nil
}

// stripInfoDict rewrites the document without its source Info dictionary so
// title, author and the other document properties do not leak into outputs.
func stripInfoDict(data []byte, conf *model.Configuration) ([]byte, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("reload for metadata strip: %w", err)
	}
	pdfCtx.XRefTable.Info = nil
	var buf bytes.Buffer
	if err := api.WriteContext(pdfCtx, &buf); err != nil {
		return nil, fmt.Errorf("strip metadata: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fitzDoc != nil {
		err := d.fitzDoc.Close()
		d.fitzDoc = nil
		return err
	}
	return nil
}

// pageTokens compacts a page list into pdfcpu selection tokens, merging
// consecutive pages into "a-b" spans.
func pageTokens(pages []int) []string {
	sorted := append([]int(nil), pages...)
	sort.Ints(sorted)
	var tokens []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			tokens = append(tokens, fmt.Sprintf("%d", start))
		} else {
			tokens = append(tokens, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, p := range sorted[1:] {
		if p == prev || p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()
	return tokens
}
