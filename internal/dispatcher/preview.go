package dispatcher

import (
	"context"
)

// PreviewPartition describes one planned output without extracting it.
type PreviewPartition struct {
	Index        int    `json:"index"`
	FileName     string `json:"file_name"`
	Pages        string `json:"pages"`
	PageCount    int    `json:"page_count"`
	EstSizeBytes int64  `json:"est_size_bytes"`
}

// PreviewResponse is the dry-run answer: the plan, never the pages.
type PreviewResponse struct {
	Strategy         string             `json:"strategy"`
	TotalPages       int                `json:"total_pages"`
	TotalOutputs     int                `json:"total_outputs"`
	OriginalFilename string             `json:"original_filename"`
	Partitions       []PreviewPartition `json:"partitions"`
}

// Preview runs the planner only and estimates output sizes proportionally
// from the source size. No partition is extracted and nothing is written.
func (d *Dispatcher) Preview(ctx context.Context, req Request) (*PreviewResponse, error) {
	doc, plan, err := d.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	var perPage int64
	if total > 0 {
		perPage = doc.SizeBytes() / int64(total)
	}

	resp := &PreviewResponse{
		Strategy:         string(plan.Strategy),
		TotalPages:       total,
		TotalOutputs:     len(plan.Partitions),
		OriginalFilename: req.OriginalName,
		Partitions:       make([]PreviewPartition, 0, len(plan.Partitions)),
	}
	for _, part := range plan.Partitions {
		resp.Partitions = append(resp.Partitions, PreviewPartition{
			Index:        part.Index,
			FileName:     part.FileName,
			Pages:        part.RangeLabel(),
			PageCount:    part.PageCount(),
			EstSizeBytes: perPage * int64(part.PageCount()),
		})
	}
	return resp, nil
}
