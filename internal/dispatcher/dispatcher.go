// Package dispatcher resolves the requested split strategy and drives the
// plan, execute, package pipeline, synchronously or through the job tracker.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitd/internal/archive"
	"github.com/local/pdfsplitd/internal/jobs"
	"github.com/local/pdfsplitd/internal/metrics"
	"github.com/local/pdfsplitd/internal/pagerange"
	"github.com/local/pdfsplitd/internal/split"
	"github.com/local/pdfsplitd/internal/tempstore"
)

// Request carries one split invocation. Data holds the already-fetched and
// validated source bytes.
type Request struct {
	Data         []byte
	OriginalName string

	Strategy    string
	Ranges      []string
	ThresholdMB float64
	SectionType string
	Content     split.ContentConfig

	NamePattern       string
	PreserveBookmarks bool
	PreserveMetadata  bool
	// FailFast aborts on the first failing partition instead of batching.
	FailFast bool
}

// Response is the sync-mode result and the payload recorded on async jobs.
type Response struct {
	Success          bool                `json:"success"`
	Message          string              `json:"message"`
	Artifacts        []jobs.ArtifactInfo `json:"artifacts"`
	TotalOutputs     int                 `json:"total_outputs"`
	ProcessingMS     int64               `json:"processing_ms"`
	OriginalFilename string              `json:"original_filename"`
	Strategy         string              `json:"strategy"`
	ArchivePath      string              `json:"-"`
}

// Loader opens source bytes into a Document. The engine implements it.
type Loader interface {
	Load(ctx context.Context, data []byte) (split.Document, error)
}

// Mirror pushes a finished archive and its artifacts to remote storage.
// Implemented by the S3 store; nil disables mirroring.
type Mirror interface {
	MirrorSplit(ctx context.Context, archivePath string, artifacts []split.OutputArtifact) error
}

// Options tunes the dispatcher.
type Options struct {
	// ArchiveTTL is how long finished archives stay on disk. Zero means 1h.
	ArchiveTTL time.Duration
}

// Dispatcher wires the engine, temp store and job tracker together.
type Dispatcher struct {
	eng     Loader
	temp    *tempstore.Store
	tracker *jobs.Tracker
	mirror  Mirror
	opts    Options
}

func New(eng Loader, temp *tempstore.Store, tracker *jobs.Tracker, mirror Mirror, opts Options) *Dispatcher {
	if opts.ArchiveTTL <= 0 {
		opts.ArchiveTTL = time.Hour
	}
	return &Dispatcher{eng: eng, temp: temp, tracker: tracker, mirror: mirror, opts: opts}
}

// prepare loads the source and resolves the request into a plan. Validation
// failures (bad strategy, bad ranges, no structure) surface here, before any
// page is extracted. The caller owns the returned document.
func (d *Dispatcher) prepare(ctx context.Context, req Request) (split.Document, *split.SplitPlan, error) {
	strategy, err := split.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, nil, err
	}
	doc, err := d.eng.Load(ctx, req.Data)
	if err != nil {
		return nil, nil, err
	}

	params, err := buildParams(req, doc.PageCount())
	if err != nil {
		doc.Close()
		return nil, nil, err
	}
	planner, err := split.PlannerFor(strategy)
	if err != nil {
		doc.Close()
		return nil, nil, err
	}
	plan, err := planner.Plan(ctx, doc, params)
	if err != nil {
		doc.Close()
		return nil, nil, err
	}
	// report the variant the caller asked for, not the planner family
	plan.Strategy = strategy
	return doc, plan, nil
}

func buildParams(req Request, totalPages int) (split.Params, error) {
	params := split.Params{
		ThresholdMB:       req.ThresholdMB,
		Content:           req.Content,
		NamePattern:       req.NamePattern,
		PreserveBookmarks: req.PreserveBookmarks,
		PreserveMetadata:  req.PreserveMetadata,
		OriginalName:      req.OriginalName,
	}
	ranges, err := pagerange.Parse(req.Ranges, totalPages)
	if err != nil {
		return params, err
	}
	params.Ranges = ranges
	if req.SectionType != "" {
		st, err := split.ParseSectionType(req.SectionType)
		if err != nil {
			return params, err
		}
		params.SectionType = st
	}
	return params, nil
}

// Run executes one split synchronously: plan, extract every partition,
// package the archive. The response references the archive on local disk.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	doc, plan, err := d.prepare(ctx, req)
	if err != nil {
		metrics.ObserveSplit(req.Strategy, "rejected", time.Since(start))
		return nil, err
	}
	defer doc.Close()

	resp, err := d.execute(ctx, doc, plan, req, nil)
	result := "success"
	if err != nil {
		result = "error"
	} else if !resp.Success {
		result = "partial"
	}
	metrics.ObserveSplit(string(plan.Strategy), result, time.Since(start))
	if resp != nil {
		resp.ProcessingMS = time.Since(start).Milliseconds()
	}
	return resp, err
}

// Submit validates and plans synchronously, then hands execution to the job
// tracker. Returns the operation id. The spawned worker owns doc.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (string, error) {
	doc, plan, err := d.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	meta := jobs.Meta{Strategy: string(plan.Strategy), OriginalName: req.OriginalName}
	id, err := d.tracker.Submit(meta, func(jctx context.Context, report split.ProgressFunc) (*jobs.Outcome, error) {
		defer doc.Close()
		start := time.Now()
		resp, err := d.execute(jctx, doc, plan, req, report)
		result := "success"
		if err != nil {
			result = "error"
		} else if !resp.Success {
			result = "partial"
		}
		metrics.ObserveSplit(string(plan.Strategy), result, time.Since(start))
		if resp == nil {
			return nil, err
		}
		return &jobs.Outcome{
			Success:     resp.Success,
			Message:     resp.Message,
			Artifacts:   resp.Artifacts,
			ArchivePath: resp.ArchivePath,
		}, err
	})
	if err != nil {
		doc.Close()
		return "", err
	}
	return id, nil
}

// execute runs the extract and package stages of an already-built plan.
func (d *Dispatcher) execute(ctx context.Context, doc split.Document, plan *split.SplitPlan, req Request, report split.ProgressFunc) (*Response, error) {
	exec := &split.Executor{FailFast: req.FailFast}
	res, err := exec.Execute(ctx, doc, plan, d.temp, report)
	for range res.Artifacts {
		metrics.IncPartition("success")
	}
	for _, f := range res.Failed {
		metrics.IncPartition("failed")
		log.Warn().Int("partition", f.Index).Str("pages", f.PageRange).Err(f.Err).Msg("partition failed")
	}
	if err != nil {
		// cancelled jobs keep what finished before the cancel point
		if errors.Is(err, split.ErrCancelled) && len(res.Artifacts) > 0 {
			if resp := d.packPartial(res, req, plan); resp != nil {
				return resp, err
			}
		}
		d.discardArtifacts(res.Artifacts)
		return nil, err
	}
	if len(res.Artifacts) == 0 {
		return nil, &split.ArchivePackagingError{Err: errors.New("no partitions produced output")}
	}

	archivePath, archiveSize, err := d.packArchive(res.Artifacts)
	if err != nil {
		d.discardArtifacts(res.Artifacts)
		return nil, err
	}
	d.temp.ScheduleCleanup(archivePath, d.opts.ArchiveTTL)
	metrics.ObserveArchive(archiveSize)

	if d.mirror != nil {
		if merr := d.mirror.MirrorSplit(ctx, archivePath, res.Artifacts); merr != nil {
			log.Error().Err(merr).Msg("archive mirror failed")
		}
	}
	d.discardArtifacts(res.Artifacts)

	resp := &Response{
		Success:          res.Success,
		Message:          "split completed",
		Artifacts:        artifactInfos(res.Artifacts),
		TotalOutputs:     len(res.Artifacts),
		OriginalFilename: req.OriginalName,
		Strategy:         string(plan.Strategy),
		ArchivePath:      archivePath,
	}
	if !res.Success {
		resp.Message = fmt.Sprintf("split completed with %d failed partitions", len(res.Failed))
	}
	return resp, nil
}

// packPartial archives the artifacts a cancelled run completed. Returns nil
// when packaging fails; the caller falls back to plain discard.
func (d *Dispatcher) packPartial(res *split.Result, req Request, plan *split.SplitPlan) *Response {
	archivePath, size, err := d.packArchive(res.Artifacts)
	d.discardArtifacts(res.Artifacts)
	if err != nil {
		log.Warn().Err(err).Msg("partial archive packaging failed")
		return nil
	}
	d.temp.ScheduleCleanup(archivePath, d.opts.ArchiveTTL)
	metrics.ObserveArchive(size)
	return &Response{
		Success:          false,
		Message:          fmt.Sprintf("cancelled after %d partitions", len(res.Artifacts)),
		Artifacts:        artifactInfos(res.Artifacts),
		TotalOutputs:     len(res.Artifacts),
		OriginalFilename: req.OriginalName,
		Strategy:         string(plan.Strategy),
		ArchivePath:      archivePath,
	}
}

func (d *Dispatcher) packArchive(artifacts []split.OutputArtifact) (string, int64, error) {
	f, err := d.temp.CreateTemp("split-*.zip")
	if err != nil {
		return "", 0, &split.ArchivePackagingError{Err: fmt.Errorf("create archive: %w", err)}
	}
	pk := &archive.Packager{}
	if err := pk.Pack(f, artifacts); err != nil {
		f.Close()
		d.temp.Remove(f.Name())
		return "", 0, err
	}
	info, statErr := f.Stat()
	if err := f.Close(); err != nil {
		d.temp.Remove(f.Name())
		return "", 0, &split.ArchivePackagingError{Err: fmt.Errorf("flush archive: %w", err)}
	}
	var size int64
	if statErr == nil {
		size = info.Size()
	}
	return f.Name(), size, nil
}

// discardArtifacts removes staged partition files once they are archived or
// abandoned.
func (d *Dispatcher) discardArtifacts(artifacts []split.OutputArtifact) {
	for _, a := range artifacts {
		if a.Path != "" {
			if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
				log.Debug().Err(err).Str("path", a.Path).Msg("stage cleanup failed")
			}
		}
	}
}

func artifactInfos(artifacts []split.OutputArtifact) []jobs.ArtifactInfo {
	out := make([]jobs.ArtifactInfo, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, jobs.ArtifactInfo{
			FileName:  a.FileName,
			PageCount: a.PageCount,
			SizeBytes: a.SizeBytes,
		})
	}
	return out
}
