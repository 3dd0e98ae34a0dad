package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// ExecutionArchiveStore provides read access to harvest executions for
// archival purposes. The archiver only needs the time-ranged query, not the
// full domain.ExecutionStore interface.
type ExecutionArchiveStore interface {
	// ListBefore returns all executions started strictly before the given
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.HarvestExecution, error)
}

// Archiver offloads historical harvest data to object storage: old execution
// records as JSONL files and finished analysis reports as JSON documents.
//
// Deletion of archived records from the primary store is intentionally NOT
// performed here; that is a separate, explicit step to be executed after the
// archive has been verified.
type Archiver struct {
	writer     domain.BlobWriter
	executions ExecutionArchiveStore
	audit      domain.AuditStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, executions ExecutionArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:     writer,
		executions: executions,
		audit:      audit,
	}
}

// ArchiveExecutions queries all harvest executions started before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/executions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	execs, err := a.executions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(execs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(execs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := fmt.Sprintf("archive/executions/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	count := int64(len(execs))

	if err := a.audit.Log(ctx, "archive.executions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive executions audit log: %w", err)
	}

	return count, nil
}

// ArchiveReport uploads a completed analysis report as a standalone JSON
// document at reports/{portfolio}/{timestamp}.json, giving compliance a
// durable record of what the engine recommended and when.
func (a *Archiver) ArchiveReport(ctx context.Context, report domain.AnalysisReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal report %s: %w", report.PortfolioID, err)
	}

	path := fmt.Sprintf("reports/%s/%s.json",
		report.PortfolioID, report.GeneratedAt.UTC().Format("2006-01-02T15-04-05Z"))

	if err := a.writer.Put(ctx, path, data, "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive report %s: %w", report.PortfolioID, err)
	}

	if err := a.audit.Log(ctx, "archive.report", map[string]any{
		"path":      path,
		"portfolio": report.PortfolioID,
	}); err != nil {
		return fmt.Errorf("s3blob: archive report audit log: %w", err)
	}

	return nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
