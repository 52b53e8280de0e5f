package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/scanner"
	"github.com/mdfranz/saruca/internal/util"
)

// maxBlobSize caps how large a tool-output or security-event blob may be
// before it is skipped instead of read wholesale.
const maxBlobSize = 10 * 1024 * 1024

// Record is one raw decoded record tagged by category. Session files decode
// into a typed SessionFile; the loosely-shaped categories decode into open
// field maps so the normalizer's mapping tables can pick fields out.
type Record struct {
	Category model.Category
	File     string
	Index    int64 // intra-file record index, part of the stable row identity

	Session *model.SessionFile // set for CategorySession
	Fields  map[string]any     // set for log / tool-output / security-event
}

// FileResult is the outcome of parsing a single source file. A whole-file
// decode failure sets Err and yields zero records; individual malformed
// records are skipped and counted in Skipped.
type FileResult struct {
	File    scanner.SourceFile
	Records []Record
	Skipped int
	Err     error
}

// Stats accumulates per-batch parse accounting for the final summary.
type Stats struct {
	FilesParsed    int
	FilesFailed    int
	RecordsSkipped int
}

func (s Stats) String() string {
	return fmt.Sprintf("parsed=%d failed=%d skipped_records=%d",
		s.FilesParsed, s.FilesFailed, s.RecordsSkipped)
}

// Parser decodes discovered files into raw records.
type Parser struct {
	concurrency int
}

// NewParser creates a new Parser instance.
func NewParser(concurrency int) *Parser {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Parser{concurrency: concurrency}
}

// ParseFile parses one source file according to its category.
func (p *Parser) ParseFile(sf scanner.SourceFile) FileResult {
	util.LogDebugf("Start parsing file: %s (%s)", sf.Path, sf.Category)

	if sf.Size > maxBlobSize && sf.Category != model.CategorySession && sf.Category != model.CategoryLog {
		return FileResult{File: sf, Err: fmt.Errorf("file exceeds %d byte limit: %s", maxBlobSize, sf.Path)}
	}

	data, err := os.ReadFile(sf.Path)
	if err != nil {
		return FileResult{File: sf, Err: fmt.Errorf("read %s: %w", sf.Path, err)}
	}

	switch sf.Category {
	case model.CategorySession:
		return p.parseSession(sf, data)
	case model.CategoryLog:
		return p.parseLog(sf, data)
	case model.CategoryToolOutput:
		return p.parseToolOutput(sf, data)
	case model.CategorySecurityEvent:
		return p.parseSecurityEvents(sf, data)
	default:
		return FileResult{File: sf, Err: fmt.Errorf("unknown category %q for %s", sf.Category, sf.Path)}
	}
}

// parseLog decodes a logs.json file: either a JSON array of entries or
// newline-delimited objects. A malformed element is skipped and counted.
func (p *Parser) parseLog(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return result
	}

	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := sonic.Unmarshal(trimmed, &raw); err != nil {
			result.Err = fmt.Errorf("decode log array %s: %w", sf.Path, err)
			return result
		}
		for _, item := range raw {
			fields, err := decodeFields(item)
			if err != nil {
				result.Skipped++
				continue
			}
			result.Records = append(result.Records, Record{
				Category: model.CategoryLog,
				File:     sf.Path,
				Index:    int64(len(result.Records)),
				Fields:   fields,
			})
		}
		return result
	}

	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fields, err := decodeFields(line)
		if err != nil {
			util.LogDebugf("Skip invalid log line in %s: %v", sf.Path, err)
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, Record{
			Category: model.CategoryLog,
			File:     sf.Path,
			Index:    int64(len(result.Records)),
			Fields:   fields,
		})
	}
	return result
}

// parseToolOutput decodes a .txt blob whose body is expected to be a JSON
// document. Anything that is not JSON yields zero records plus a recorded
// per-file failure.
func (p *Parser) parseToolOutput(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		result.Err = fmt.Errorf("not a JSON tool output: %s", sf.Path)
		return result
	}

	if trimmed[0] == '{' {
		fields, err := decodeFields(trimmed)
		if err != nil {
			result.Err = fmt.Errorf("decode tool output %s: %w", sf.Path, err)
			return result
		}
		result.Records = append(result.Records, Record{
			Category: model.CategoryToolOutput,
			File:     sf.Path,
			Fields:   fields,
		})
		return result
	}

	var raw []json.RawMessage
	if err := sonic.Unmarshal(trimmed, &raw); err != nil {
		result.Err = fmt.Errorf("decode tool output %s: %w", sf.Path, err)
		return result
	}
	for _, item := range raw {
		fields, err := decodeFields(item)
		if err != nil {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, Record{
			Category: model.CategoryToolOutput,
			File:     sf.Path,
			Index:    int64(len(result.Records)),
			Fields:   fields,
		})
	}
	return result
}

// parseSecurityEvents decodes a security export: a JSON object, a JSON
// array of objects, or newline-delimited objects.
func (p *Parser) parseSecurityEvents(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return result
	}

	switch trimmed[0] {
	case '{':
		fields, err := decodeFields(trimmed)
		if err != nil {
			result.Err = fmt.Errorf("decode security events %s: %w", sf.Path, err)
			return result
		}
		result.Records = append(result.Records, Record{
			Category: model.CategorySecurityEvent,
			File:     sf.Path,
			Fields:   fields,
		})
	case '[':
		var raw []json.RawMessage
		if err := sonic.Unmarshal(trimmed, &raw); err != nil {
			result.Err = fmt.Errorf("decode security events %s: %w", sf.Path, err)
			return result
		}
		for _, item := range raw {
			fields, err := decodeFields(item)
			if err != nil {
				result.Skipped++
				continue
			}
			result.Records = append(result.Records, Record{
				Category: model.CategorySecurityEvent,
				File:     sf.Path,
				Index:    int64(len(result.Records)),
				Fields:   fields,
			})
		}
	default:
		result.Err = fmt.Errorf("not a JSON security export: %s", sf.Path)
	}
	return result
}

func decodeFields(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ParseFiles parses multiple files concurrently and returns a channel of
// FileResult. Results arrive in completion order; the caller re-sorts rows
// deterministically after collection.
func (p *Parser) ParseFiles(files []scanner.SourceFile) <-chan FileResult {
	start := time.Now()
	results := make(chan FileResult, len(files))
	var wg sync.WaitGroup

	util.LogDebugf("Start concurrent parsing of %d files, concurrency: %d", len(files), p.concurrency)

	semaphore := make(chan struct{}, p.concurrency)

	for _, file := range files {
		wg.Add(1)
		go func(f scanner.SourceFile) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := p.ParseFile(f)
			if result.Err != nil {
				util.LogDebugf("File parsing failed: %s - %v", f.Path, result.Err)
			}
			results <- result
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
		util.LogDebugf("Concurrent parsing finished, total duration: %v", time.Since(start))
	}()

	return results
}
