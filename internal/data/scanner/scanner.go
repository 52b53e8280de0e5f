package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/util"
)

// stagingDir is the local staging directory the sync utility mirrors the
// agent's working directory into. filepath.WalkDir visits hidden
// directories, so no special casing beyond classification is needed.
const stagingDir = ".gemini-tmp"

// SourceFile is one discovered candidate file.
type SourceFile struct {
	Path     string
	Category model.Category
	Size     int64
	ModTime  int64
}

// Stats summarizes one discovery pass.
type Stats struct {
	Dirs    int
	Files   int
	Matched int
	Skipped int // unreadable paths, reported but not fatal
}

func (s Stats) String() string {
	return fmt.Sprintf("dirs=%d files=%d matched=%d skipped=%d",
		s.Dirs, s.Files, s.Matched, s.Skipped)
}

// Scanner walks one or more root directories and classifies candidate files.
type Scanner struct {
	roots []string
}

// NewScanner creates a Scanner over the given root directories.
func NewScanner(roots ...string) *Scanner {
	return &Scanner{roots: roots}
}

// Classify maps a path to its file category by name/path heuristics.
// Security export patterns win over the generic .txt tool-output bucket.
func Classify(path string) (model.Category, bool) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)

	switch {
	case strings.HasPrefix(lower, "search_security_events_") && strings.HasSuffix(lower, ".txt"),
		strings.HasPrefix(lower, "search_udm_") && strings.HasSuffix(lower, ".txt"),
		strings.HasSuffix(lower, "_events.json"):
		return model.CategorySecurityEvent, true
	case lower == "logs.json":
		return model.CategoryLog, true
	case strings.HasSuffix(lower, ".json") && filepath.Base(filepath.Dir(path)) == "chats":
		return model.CategorySession, true
	case strings.HasSuffix(lower, ".txt"):
		// Whether the body is actually JSON is decided at parse time.
		return model.CategoryToolOutput, true
	}
	return "", false
}

// Scan walks all roots and returns the deduplicated, lexicographically
// ordered inventory of classified files. Unreadable paths are counted and
// skipped; the same physical file reachable through several roots is
// reported once.
func (s *Scanner) Scan() ([]SourceFile, Stats, error) {
	start := time.Now()
	var stats Stats
	var files []SourceFile

	seenPaths := make(map[string]struct{})
	seenFiles := make(map[util.FileID]struct{})

	for _, root := range s.roots {
		if _, err := os.Stat(root); err != nil {
			util.LogWarnf("Skip unreadable root: %s - %v", root, err)
			stats.Skipped++
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				util.LogDebugf("Skip path (error): %s - %v", path, err)
				stats.Skipped++
				return nil
			}
			if d.IsDir() {
				stats.Dirs++
				return nil
			}
			stats.Files++

			category, ok := Classify(path)
			if !ok {
				return nil
			}

			canonical := canonicalPath(path)
			if _, dup := seenPaths[canonical]; dup {
				return nil
			}
			seenPaths[canonical] = struct{}{}

			info, ferr := util.StatFile(path)
			if ferr != nil {
				util.LogDebugf("Skip file (stat failed): %s - %v", path, ferr)
				stats.Skipped++
				return nil
			}
			// Hard links and bind mounts can expose one physical file
			// under several canonical paths.
			if _, dup := seenFiles[info.ID()]; dup {
				return nil
			}
			seenFiles[info.ID()] = struct{}{}

			files = append(files, SourceFile{
				Path:     path,
				Category: category,
				Size:     info.Size,
				ModTime:  info.ModTime,
			})
			stats.Matched++
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	util.LogDebugf("File scan completed: duration %v, %s", time.Since(start), stats)
	return files, stats, nil
}

func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
