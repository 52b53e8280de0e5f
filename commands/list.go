package commands

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdfranz/saruca/internal/analyzer"
	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/aggregator"
	"github.com/mdfranz/saruca/internal/presentation/formatter"
)

var (
	listProject  string
	listAll      bool
	listVerbose  bool
	listThoughts bool
	listTopN     int

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List sessions and show a detailed summary",
		RunE:  runList,
	}
)

func init() {
	listCmd.Flags().StringVar(&listProject, "project", "",
		"Filter by project hash (prefix matches)")
	listCmd.Flags().BoolVar(&listAll, "all", false,
		"List all projects and tools, not just the top N")
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false,
		"Include full conversation history")
	listCmd.Flags().BoolVar(&listThoughts, "thought", false,
		"Show model thoughts")
	listCmd.Flags().IntVar(&listTopN, "top", aggregator.DefaultTopN,
		"Size of ranked lists")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	result, err := analyzer.New(pipelineConfig()).Run()
	if err != nil {
		return err
	}

	fmt.Printf("\nFound %d candidate files (%d parsed, %d failed).\n",
		result.Scan.Matched, result.Parse.FilesParsed, result.Parse.FilesFailed)
	if result.Deduped.Sessions > 0 || result.Deduped.Logs > 0 {
		fmt.Printf("Merged duplicates: %d session copies, %d log entries.\n",
			result.Deduped.Sessions, result.Deduped.Logs)
	}

	if len(result.Tables.Messages) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	report := aggregator.Aggregate(result.Tables, aggregator.Options{
		TopN:          listTopN,
		AllProjects:   listAll,
		ProjectPrefix: listProject,
	})

	formatter.NewSummaryFormatter().Format(os.Stdout, report)

	failurePaths := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failurePaths = append(failurePaths, fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	formatter.RenderFailures(os.Stdout, result.Scan.Skipped, result.Parse.FilesFailed,
		result.Parse.RecordsSkipped, result.Normalize.Dropped, failurePaths)

	if listVerbose || listThoughts {
		printConversations(result.Tables)
	}
	return nil
}

// printConversations dumps the full history grouped by session, in
// timestamp order.
func printConversations(t *model.Tables) {
	bySession := make(map[string][]model.MessageRow)
	for _, m := range t.Messages {
		bySession[m.SessionId] = append(bySession[m.SessionId], m)
	}
	thoughtsByMsg := make(map[string][]model.ThoughtRow)
	for _, th := range t.Thoughts {
		key := fmt.Sprintf("%s/%d", th.SessionId, th.MessageIndex)
		thoughtsByMsg[key] = append(thoughtsByMsg[key], th)
	}

	sessionIds := make([]string, 0, len(bySession))
	for id := range bySession {
		sessionIds = append(sessionIds, id)
	}
	sort.Strings(sessionIds)

	fmt.Println("\n--- Full Conversation History ---")
	for _, id := range sessionIds {
		messages := bySession[id]
		sort.Slice(messages, func(i, j int) bool {
			if messages[i].Timestamp != messages[j].Timestamp {
				return messages[i].Timestamp < messages[j].Timestamp
			}
			return messages[i].MessageIndex < messages[j].MessageIndex
		})

		fmt.Printf("\nSession: %s\nProject: %s\n", id, messages[0].ProjectHash)
		fmt.Println("------------------------------------------------------------")

		for _, m := range messages {
			if listVerbose {
				ts := time.UnixMilli(m.Timestamp).UTC().Format("2006-01-02 15:04:05")
				fmt.Printf("[%s] %s:\n%s\n\n", ts, m.Role, m.Content)
			}
			if listThoughts {
				for _, th := range thoughtsByMsg[fmt.Sprintf("%s/%d", m.SessionId, m.MessageIndex)] {
					if th.Subject != "" {
						fmt.Printf("THOUGHT: [%s] %s\n", th.Subject, th.Body)
					} else {
						fmt.Printf("THOUGHT: %s\n", th.Body)
					}
				}
			}
		}
	}
}
