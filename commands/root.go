package commands

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdfranz/saruca/internal/analyzer"
	"github.com/mdfranz/saruca/internal/util"
)

var (
	// Logging related
	debug   bool
	logFile string

	// Data paths
	roots []string

	// Parallelism
	concurrency int

	rootCmd = &cobra.Command{
		Use:   "saruca",
		Short: "Gemini CLI log analyzer",
		Long: `saruca mines Gemini CLI session and log files into flat tables for analysis.

It discovers session chats, logs, tool outputs and security-event exports
under one or more directories, normalizes them into stable tabular schemas,
and supports ad-hoc summaries as well as persistent table exports.

Examples:
  saruca list                                  # Summary over the current directory
  saruca list --path ~/projects --all          # All projects instead of top 5
  saruca export-all --prefix run1_             # Export every table with a name prefix
  saruca export-all --unified --out .gemini-tmp # Merge all tables into one shared database
  saruca analyze --dir .                       # Re-analyze persisted tables without raw files
  saruca summarize --project 3fa4              # AI summaries for one project`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel := "info"
			if debug {
				logLevel = "debug"
			}
			if logFile == "" {
				logFile = util.DefaultLogFile()
			}
			util.InitLogger(logLevel, expandPath(logFile), debug)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&roots, "path", []string{"."},
		"Root directories to search for logs (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (default saruca-YYMMDD.log)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0,
		"Parallel parse workers (0 = number of CPUs)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func pipelineConfig() *analyzer.Config {
	expanded := make([]string, 0, len(roots))
	for _, r := range roots {
		expanded = append(expanded, expandPath(r))
	}
	return &analyzer.Config{
		Roots:       expanded,
		Concurrency: concurrency,
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
