package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdfranz/saruca/internal/core/model"
)

func messageRows(sourceFile string, n int) []model.MessageRow {
	rows := make([]model.MessageRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, model.MessageRow{
			SessionId:        "sess-1",
			ProjectHash:      "proj-a",
			MessageIndex:     int64(i),
			UserMessageIndex: -1,
			Role:             "model",
			Model:            "gemini-2.5-pro",
			Timestamp:        1714557600000 + int64(i)*1000,
			InputTokens:      10,
			OutputTokens:     2,
			TotalTokens:      12,
			Content:          "body",
			SourceFile:       sourceFile,
			RecordIndex:      int64(i),
		})
	}
	return rows
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tables.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMergeAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	duration := int64(1500)
	in := &model.Tables{
		Messages: messageRows("a.json", 2),
		Logs: []model.LogRow{{
			SessionId: "sess-1", Level: "info", Message: "started",
			Timestamp: 1714557600000, SourceFile: "logs.json",
		}},
		ToolCalls: []model.ToolCallRow{{
			SessionId: "sess-1", CallId: "tc1", Name: "read_file",
			Args: `{"path":"x"}`, Status: model.StatusSuccess,
			DurationMs: &duration, Timestamp: 1714557600000,
			SourceFile: "a.json", RecordIndex: 1, SubIndex: 0,
		}},
		Thoughts: []model.ThoughtRow{{
			SessionId: "sess-1", Subject: "Planning", Body: "first step",
			Timestamp: 1714557600000, SourceFile: "a.json", RecordIndex: 1,
		}},
		ToolOutputs: []model.ToolOutputRow{{
			ToolName: "read_file", Status: "ok", Summary: "text",
			Timestamp: 1714557600000, SourceFile: "read_file_1.txt",
		}},
		SecurityEvents: []model.SecurityEventRow{{
			EventType: "USER_LOGIN", Severity: "LOW",
			Timestamp: 1714557600000, SourceFile: "search_udm_1.txt",
		}},
	}

	stats, err := s.Merge(in)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Inserted)
	assert.Equal(t, int64(0), stats.Existing)

	out, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, in.Messages, out.Messages)
	assert.Equal(t, in.Logs, out.Logs)
	assert.Equal(t, in.Thoughts, out.Thoughts)
	assert.Equal(t, in.ToolOutputs, out.ToolOutputs)
	assert.Equal(t, in.SecurityEvents, out.SecurityEvents)
	require.Len(t, out.ToolCalls, 1)
	require.NotNil(t, out.ToolCalls[0].DurationMs)
	assert.Equal(t, duration, *out.ToolCalls[0].DurationMs)
}

func TestMergeIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	in := &model.Tables{Messages: messageRows("a.json", 5)}

	first, err := s.Merge(in)
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Inserted)

	second, err := s.Merge(in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(5), second.Existing)

	out, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, out.Messages, 5)
}

func TestMergeGrownSessionAddsOnlyNewRows(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Merge(&model.Tables{Messages: messageRows("a.json", 10)})
	require.NoError(t, err)

	// the session grew by two messages between runs
	stats, err := s.Merge(&model.Tables{Messages: messageRows("a.json", 12)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Inserted)
	assert.Equal(t, int64(10), stats.Existing)

	out, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, out.Messages, 12)
}

func TestMergeKeepsFirstWrittenRow(t *testing.T) {
	s := openTestStore(t)

	first := messageRows("a.json", 1)
	first[0].Content = "original"
	_, err := s.Merge(&model.Tables{Messages: first})
	require.NoError(t, err)

	conflicting := messageRows("a.json", 1)
	conflicting[0].Content = "rewritten"
	_, err = s.Merge(&model.Tables{Messages: conflicting})
	require.NoError(t, err)

	out, err := s.Load()
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "original", out.Messages[0].Content)
}

func TestLoadOrdersByRowIdentity(t *testing.T) {
	s := openTestStore(t)

	shuffled := &model.Tables{Messages: []model.MessageRow{
		{SourceFile: "b.json", RecordIndex: 0, Role: "user", Model: "Unknown", UserMessageIndex: -1},
		{SourceFile: "a.json", RecordIndex: 1, Role: "user", Model: "Unknown", UserMessageIndex: -1},
		{SourceFile: "a.json", RecordIndex: 0, Role: "user", Model: "Unknown", UserMessageIndex: -1},
	}}
	_, err := s.Merge(shuffled)
	require.NoError(t, err)

	out, err := s.Load()
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, model.RowKey{SourceFile: "a.json"}, out.Messages[0].Key())
	assert.Equal(t, model.RowKey{SourceFile: "a.json", RecordIndex: 1}, out.Messages[1].Key())
	assert.Equal(t, model.RowKey{SourceFile: "b.json"}, out.Messages[2].Key())
}

func TestExportSplitWritesOnlyNonEmptyTables(t *testing.T) {
	dir := t.TempDir()
	tables := &model.Tables{
		Messages: messageRows("a.json", 3),
		Logs: []model.LogRow{{
			Message: "one", Timestamp: 1714557600000, SourceFile: "logs.json",
		}},
	}

	results, err := ExportSplit(dir, "run1_", tables)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results["messages"].Inserted)
	assert.Equal(t, int64(1), results["logs"].Inserted)

	assert.FileExists(t, filepath.Join(dir, "run1_messages.db"))
	assert.FileExists(t, filepath.Join(dir, "run1_logs.db"))
	assert.NoFileExists(t, filepath.Join(dir, "run1_tool_calls.db"))
}

func TestExportUnifiedMergesAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	_, err := ExportUnified(dir, &model.Tables{Messages: messageRows("a.json", 2)})
	require.NoError(t, err)
	stats, err := ExportUnified(dir, &model.Tables{Messages: messageRows("b.json", 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Inserted)

	s, err := Open(filepath.Join(dir, UnifiedName))
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, out.Messages, 4)
}
