package split

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ArtifactSink stages serialized partition bytes and returns a content handle.
// The temp store implements this.
type ArtifactSink interface {
	Stage(fileName string, data []byte) (string, error)
}

// PartitionFailure records one failed partition under batch-tolerant mode.
type PartitionFailure struct {
	Index     int
	PageRange string
	Err       error
}

// Result aggregates the outcome of executing one plan.
type Result struct {
	Success   bool
	Artifacts []OutputArtifact
	Failed    []PartitionFailure
}

// PagesWritten sums page counts across successful artifacts.
func (r *Result) PagesWritten() int {
	n := 0
	for _, a := range r.Artifacts {
		n += a.PageCount
	}
	return n
}

// ProgressFunc is invoked after each partition with completed and total counts.
type ProgressFunc func(completed, total int)

// Executor turns a SplitPlan into staged output artifacts, in strict plan
// order. Cancellation and timeouts are observed between partitions only.
type Executor struct {
	// FailFast aborts on the first failing partition. Otherwise failed
	// partitions are recorded and execution continues.
	FailFast bool
}

// Execute extracts each partition of the plan from doc and stages the result
// through sink. onProgress may be nil.
func (e *Executor) Execute(ctx context.Context, doc Document, plan *SplitPlan, sink ArtifactSink, onProgress ProgressFunc) (*Result, error) {
	total := len(plan.Partitions)
	res := &Result{Success: true}

	for i, part := range plan.Partitions {
		if err := ctx.Err(); err != nil {
			return res, mapCtxErr(err)
		}
		data, err := doc.ExtractPages(part.Pages(), plan.PreserveBookmarks, plan.PreserveMetadata)
		if err == nil {
			var path string
			path, err = sink.Stage(part.FileName, data)
			if err == nil {
				res.Artifacts = append(res.Artifacts, OutputArtifact{
					FileName:  part.FileName,
					PageCount: part.PageCount(),
					SizeBytes: int64(len(data)),
					Path:      path,
				})
			}
		}
		if err != nil {
			pe := &PartitionExtractionError{Strategy: plan.Strategy, Index: part.Index, PageRange: part.RangeLabel(), Err: err}
			if e.FailFast {
				res.Success = false
				return res, pe
			}
			log.Warn().Err(pe).Int("partition", part.Index).Msg("partition failed; continuing")
			res.Success = false
			res.Failed = append(res.Failed, PartitionFailure{Index: part.Index, PageRange: part.RangeLabel(), Err: pe})
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}
	return res, nil
}

func mapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}
