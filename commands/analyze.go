package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/aggregator"
	"github.com/mdfranz/saruca/internal/data/store"
	"github.com/mdfranz/saruca/internal/presentation/formatter"
)

var (
	analyzeDir     string
	analyzePrefix  string
	analyzeUnified bool
	analyzeTopN    int
	analyzeAll     bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze previously exported tables without re-parsing raw files",
		RunE:  runAnalyzeTables,
	}
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDir, "dir", ".",
		"Directory holding exported tables")
	analyzeCmd.Flags().StringVar(&analyzePrefix, "prefix", "",
		"Prefix of the exported table files")
	analyzeCmd.Flags().BoolVar(&analyzeUnified, "unified", false,
		"Read the single shared database instead of per-table files")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top", aggregator.DefaultTopN,
		"Size of ranked lists")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false,
		"List all projects and tools, not just the top N")

	rootCmd.AddCommand(analyzeCmd)
}

// runAnalyzeTables recomputes statistics purely from persisted tables; raw
// source files are never touched here.
func runAnalyzeTables(cmd *cobra.Command, args []string) error {
	dir := expandPath(analyzeDir)

	tables := &model.Tables{}
	loaded := 0

	if analyzeUnified {
		t, err := loadStore(filepath.Join(dir, store.UnifiedName))
		if err != nil {
			return err
		}
		tables = t
		loaded = 1
	} else {
		for _, table := range model.TableNames {
			path := filepath.Join(dir, analyzePrefix+table+".db")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			t, err := loadStore(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
				continue
			}
			tables.Append(t)
			loaded++
		}
	}

	if loaded == 0 || tables.RowCount() == 0 {
		return fmt.Errorf("no exported tables found in %s with prefix %q", dir, analyzePrefix)
	}

	report := aggregator.Aggregate(tables, aggregator.Options{
		TopN:        analyzeTopN,
		AllProjects: analyzeAll,
	})
	formatter.NewSummaryFormatter().Format(os.Stdout, report)
	return nil
}

func loadStore(path string) (*model.Tables, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Load()
}
