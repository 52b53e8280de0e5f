package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdfranz/saruca/internal/analyzer"
	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/store"
)

var (
	exportOutput string

	exportAllDir     string
	exportAllPrefix  string
	exportAllUnified bool

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export messages to a table file",
		RunE:  runExport,
	}

	exportAllCmd = &cobra.Command{
		Use:   "export-all",
		Short: "Export all tables (messages, logs, tool_calls, thoughts, tool_outputs, security_events)",
		RunE:  runExportAll,
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "messages.db",
		"Output file")

	exportAllCmd.Flags().StringVar(&exportAllDir, "out", ".",
		"Output directory")
	exportAllCmd.Flags().StringVar(&exportAllPrefix, "prefix", "",
		"Prefix for output table files")
	exportAllCmd.Flags().BoolVar(&exportAllUnified, "unified", false,
		"Merge all tables into the single shared database for cross-run recombination")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(exportAllCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	result, err := analyzer.New(pipelineConfig()).Run()
	if err != nil {
		return err
	}

	s, err := store.Open(expandPath(exportOutput))
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Merge(&model.Tables{Messages: result.Tables.Messages})
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d messages to %s (%s)\n",
		len(result.Tables.Messages), exportOutput, stats)
	return nil
}

func runExportAll(cmd *cobra.Command, args []string) error {
	result, err := analyzer.New(pipelineConfig()).Run()
	if err != nil {
		return err
	}

	dir := expandPath(exportAllDir)
	if exportAllUnified {
		stats, err := store.ExportUnified(dir, result.Tables)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s/%s (%s)\n", dir, store.UnifiedName, stats)
	} else {
		results, err := store.ExportSplit(dir, exportAllPrefix, result.Tables)
		for _, table := range model.TableNames {
			if stats, ok := results[table]; ok {
				fmt.Printf("Saved %s%s.db (%s)\n", exportAllPrefix, table, stats)
			}
		}
		if err != nil {
			return err
		}
	}

	if result.Parse.FilesFailed > 0 || result.Parse.RecordsSkipped > 0 || result.Normalize.Dropped > 0 {
		fmt.Printf("Skipped: %d failed files, %d malformed records, %d dropped records\n",
			result.Parse.FilesFailed, result.Parse.RecordsSkipped, result.Normalize.Dropped)
	}
	if result.Deduped.Sessions > 0 || result.Deduped.Logs > 0 {
		fmt.Printf("Merged duplicates: %d session copies, %d log entries\n",
			result.Deduped.Sessions, result.Deduped.Logs)
	}
	return nil
}
