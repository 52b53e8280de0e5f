package store

import (
	"fmt"
	"path/filepath"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/util"
)

// UnifiedName is the single database every unified export run merges into.
// Independent runs targeting the same staging directory converge here; the
// row-identity key makes the result convergent, though which run wins a
// conflicting non-key field is first-write-wins by arrival order.
const UnifiedName = "saruca.db"

// ExportSplit writes each non-empty table into its own database file named
// "<prefix><table>.db" under dir. A failure on one target is reported but
// does not abort the remaining tables.
func ExportSplit(dir, prefix string, t *model.Tables) (map[string]Stats, error) {
	results := make(map[string]Stats)
	var firstErr error

	write := func(table string, sub *model.Tables, count int) {
		if count == 0 {
			return
		}
		path := filepath.Join(dir, prefix+table+".db")
		s, err := Open(path)
		if err != nil {
			util.LogErrorf("Export target unusable: %s - %v", path, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("export %s: %w", table, err)
			}
			return
		}
		defer s.Close()

		stats, err := s.Merge(sub)
		if err != nil {
			util.LogErrorf("Export failed: %s - %v", path, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("export %s: %w", table, err)
			}
			return
		}
		results[table] = stats
	}

	write("messages", &model.Tables{Messages: t.Messages}, len(t.Messages))
	write("logs", &model.Tables{Logs: t.Logs}, len(t.Logs))
	write("tool_calls", &model.Tables{ToolCalls: t.ToolCalls}, len(t.ToolCalls))
	write("thoughts", &model.Tables{Thoughts: t.Thoughts}, len(t.Thoughts))
	write("tool_outputs", &model.Tables{ToolOutputs: t.ToolOutputs}, len(t.ToolOutputs))
	write("security_events", &model.Tables{SecurityEvents: t.SecurityEvents}, len(t.SecurityEvents))

	return results, firstErr
}

// ExportUnified merges all tables into the single shared database under dir.
func ExportUnified(dir string, t *model.Tables) (Stats, error) {
	s, err := Open(filepath.Join(dir, UnifiedName))
	if err != nil {
		return Stats{}, err
	}
	defer s.Close()
	return s.Merge(t)
}
