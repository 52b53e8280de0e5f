package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdfranz/saruca/internal/analyzer"
	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/summarizer"
)

var (
	summarizeProject string

	summarizeCmd = &cobra.Command{
		Use:   "summarize",
		Short: "Use AI to summarize sessions for a specific project",
		RunE:  runSummarize,
	}
)

func init() {
	summarizeCmd.Flags().StringVar(&summarizeProject, "project", "",
		"Filter by project hash (prefix matches)")
	summarizeCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	apiKey, err := summarizer.ResolveAPIKey()
	if err != nil {
		return err
	}

	result, err := analyzer.New(pipelineConfig()).Run()
	if err != nil {
		return err
	}

	sessions := sessionsForProject(result.Tables.Messages, summarizeProject)
	if len(sessions) == 0 {
		fmt.Printf("No sessions found for project: %s\n", summarizeProject)
		return nil
	}

	client := summarizer.NewClient(apiKey)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, sessionId := range sortedKeys(sessions) {
		fmt.Printf("\nSummarizing Session: %s\n", sessionId)
		summary, err := client.SummarizeSession(ctx, sessions[sessionId])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Title: %s\n", summary.Title)
		fmt.Println("Key Points:")
		for _, pt := range summary.KeyPoints {
			fmt.Printf("  - %s\n", pt)
		}
		fmt.Printf("Outcome: %s\n", summary.Outcome)
		fmt.Println(strings.Repeat("-", 40))
	}
	return nil
}

func sessionsForProject(messages []model.MessageRow, projectPrefix string) map[string][]model.MessageRow {
	sessions := make(map[string][]model.MessageRow)
	for _, m := range messages {
		if !strings.HasPrefix(m.ProjectHash, projectPrefix) {
			continue
		}
		sessions[m.SessionId] = append(sessions[m.SessionId], m)
	}
	for id := range sessions {
		msgs := sessions[id]
		sort.Slice(msgs, func(i, j int) bool {
			if msgs[i].Timestamp != msgs[j].Timestamp {
				return msgs[i].Timestamp < msgs[j].Timestamp
			}
			return msgs[i].MessageIndex < msgs[j].MessageIndex
		})
		sessions[id] = msgs
	}
	return sessions
}

func sortedKeys(m map[string][]model.MessageRow) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
