package split

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled marks a job cancelled cooperatively. Terminal, not a failure.
var ErrCancelled = errors.New("cancelled")

// RangeSyntaxError reports a malformed range expression.
type RangeSyntaxError struct {
	Expr string
}

func (e *RangeSyntaxError) Error() string {
	return fmt.Sprintf("invalid page range syntax: %q", e.Expr)
}

// RangeOutOfBoundsError reports a syntactically valid range outside the document.
type RangeOutOfBoundsError struct {
	Expr       string
	Start, End int
	TotalPages int
}

func (e *RangeOutOfBoundsError) Error() string {
	return fmt.Sprintf("page range %q out of bounds (document has %d pages)", e.Expr, e.TotalPages)
}

// NoStructureFoundError means a section strategy found no qualifying outline
// entries. Recoverable: the caller may retry with another strategy.
type NoStructureFoundError struct {
	SectionType SectionType
}

func (e *NoStructureFoundError) Error() string {
	return fmt.Sprintf("no %s structure found in document", e.SectionType)
}

// PartitionExtractionError reports a failure extracting one partition.
type PartitionExtractionError struct {
	Strategy  Strategy
	Index     int
	PageRange string
	Err       error
}

func (e *PartitionExtractionError) Error() string {
	return fmt.Sprintf("partition %d (pages %s, strategy %s): %v", e.Index, e.PageRange, e.Strategy, e.Err)
}

func (e *PartitionExtractionError) Unwrap() error { return e.Err }

// ArchivePackagingError reports a failure assembling the output archive.
type ArchivePackagingError struct {
	Entry string
	Err   error
}

func (e *ArchivePackagingError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive packaging failed at entry %q: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("archive packaging failed: %v", e.Err)
}

func (e *ArchivePackagingError) Unwrap() error { return e.Err }

// JobNotFoundError reports a query for an unknown or expired operation id.
type JobNotFoundError struct {
	OperationID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.OperationID)
}

// TimeoutError reports a job exceeding its maximum-duration budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job exceeded maximum duration %s", e.Budget)
}

// IsValidation reports whether err is a non-retryable request validation error.
func IsValidation(err error) bool {
	var syn *RangeSyntaxError
	var oob *RangeOutOfBoundsError
	return errors.As(err, &syn) || errors.As(err, &oob)
}

// IsNoStructure reports whether err means the document lacks outline structure.
func IsNoStructure(err error) bool {
	var ns *NoStructureFoundError
	return errors.As(err, &ns)
}

// IsTimeout reports whether err is a job duration budget overrun.
func IsTimeout(err error) bool {
	var to *TimeoutError
	return errors.As(err, &to)
}
