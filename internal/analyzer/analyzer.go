package analyzer

import (
	"fmt"
	"runtime"
	"time"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/normalizer"
	"github.com/mdfranz/saruca/internal/data/parser"
	"github.com/mdfranz/saruca/internal/data/scanner"
	"github.com/mdfranz/saruca/internal/util"
)

// Config controls one discovery+normalization pass.
type Config struct {
	Roots       []string
	Concurrency int
}

// Result bundles the normalized tables with the skip/drop accounting so
// data loss is always visible to the caller even though it never halts the
// batch.
type Result struct {
	Tables    *model.Tables
	Scan      scanner.Stats
	Parse     parser.Stats
	Normalize normalizer.Stats
	Deduped   DedupeStats
	Failures  []FileFailure
}

// DedupeStats counts records discarded because another discovered copy of
// the same logical record won reconciliation.
type DedupeStats struct {
	Sessions int
	Logs     int
}

func (s DedupeStats) String() string {
	return fmt.Sprintf("dup_sessions=%d dup_logs=%d", s.Sessions, s.Logs)
}

// FileFailure records one whole-file decode failure.
type FileFailure struct {
	Path string
	Err  error
}

// Analyzer drives the scan → parse → normalize pipeline.
type Analyzer struct {
	config     *Config
	scanner    *scanner.Scanner
	parser     *parser.Parser
	normalizer *normalizer.Normalizer
}

func New(config *Config) *Analyzer {
	if config.Concurrency == 0 {
		config.Concurrency = runtime.NumCPU()
	}

	return &Analyzer{
		config:     config,
		scanner:    scanner.NewScanner(config.Roots...),
		parser:     parser.NewParser(config.Concurrency),
		normalizer: normalizer.New(),
	}
}

// Run executes the pipeline. Per-file and per-record failures are counted
// and carried in the Result; only a completely failed scan is an error.
func (a *Analyzer) Run() (*Result, error) {
	startTime := time.Now()
	util.LogInfo("Starting discovery and normalization...")

	scanStart := time.Now()
	files, scanStats, err := a.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	util.LogDebugf("Phase 1 - File scan duration: %v, %s", time.Since(scanStart), scanStats)

	result := &Result{
		Tables: &model.Tables{},
		Scan:   scanStats,
	}
	if len(files) == 0 {
		util.LogWarn("No candidate files found")
		return result, nil
	}
	util.LogInfof("Found %d candidate files", len(files))

	// Workers return per-file batches; rows are merged here and re-sorted
	// afterwards so parallel completion order never leaks into the output.
	parseStart := time.Now()
	var parsed []parser.FileResult
	for fileResult := range a.parser.ParseFiles(files) {
		if fileResult.Err != nil {
			result.Parse.FilesFailed++
			result.Failures = append(result.Failures, FileFailure{
				Path: fileResult.File.Path,
				Err:  fileResult.Err,
			})
			continue
		}
		result.Parse.FilesParsed++
		result.Parse.RecordsSkipped += fileResult.Skipped
		parsed = append(parsed, fileResult)
	}
	util.LogDebugf("Phase 2 - Parse duration: %v, %s", time.Since(parseStart), result.Parse)

	result.Deduped.Sessions = dropDuplicateSessions(parsed)

	for _, fileResult := range parsed {
		tables, normStats := a.normalizer.NormalizeFile(fileResult)
		result.Normalize.Dropped += normStats.Dropped
		result.Tables.Append(tables)
	}

	result.Tables.Sort()
	result.Deduped.Logs = dropDuplicateLogs(result.Tables)

	util.LogInfof("Pipeline finished in %v: %d rows, %s, %s, %s",
		time.Since(startTime), result.Tables.RowCount(), result.Parse, result.Normalize, result.Deduped)
	return result, nil
}

// dropDuplicateSessions reconciles sessions discovered more than once, e.g.
// at the original path and again through the staging mirror. The copy with
// the latest lastUpdated wins (file mtime for files predating session
// metadata); timestamp ties break on path so repeated runs pick the same
// winner. Losing copies are cleared before normalization and counted.
func dropDuplicateSessions(results []parser.FileResult) int {
	type candidate struct {
		idx     int
		updated int64
		path    string
	}
	best := make(map[string]candidate)
	dropped := 0

	for i, fr := range results {
		for _, rec := range fr.Records {
			if rec.Category != model.CategorySession || rec.Session == nil {
				continue
			}
			cand := candidate{idx: i, path: fr.File.Path}
			if ts, ok := util.ParseTimestamp(rec.Session.LastUpdated); ok {
				cand.updated = ts.UnixMilli()
			} else {
				cand.updated = fr.File.ModTime * 1000
			}

			prev, seen := best[rec.Session.SessionId]
			if !seen {
				best[rec.Session.SessionId] = cand
				continue
			}
			dropped++
			util.LogDebugf("Duplicate session %s: %s vs %s", rec.Session.SessionId, prev.path, cand.path)
			if cand.updated > prev.updated ||
				(cand.updated == prev.updated && cand.path < prev.path) {
				results[prev.idx].Records = nil
				best[rec.Session.SessionId] = cand
			} else {
				results[i].Records = nil
			}
		}
	}
	return dropped
}

// dropDuplicateLogs collapses log rows that describe the same upstream
// entry, keyed the way the writer identifies them: (session id, message id,
// timestamp). Runs after Sort so the surviving row is the one with the
// smallest row identity, identical across runs.
func dropDuplicateLogs(t *model.Tables) int {
	type entryKey struct {
		sessionId string
		messageId int64
		timestamp int64
	}
	seen := make(map[entryKey]struct{}, len(t.Logs))
	kept := t.Logs[:0]
	for _, r := range t.Logs {
		k := entryKey{r.SessionId, r.MessageId, r.Timestamp}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, r)
	}
	dropped := len(t.Logs) - len(kept)
	t.Logs = kept
	return dropped
}
