package analyzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdfranz/saruca/internal/core/model"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func stageFixtures(t *testing.T) string {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "chats", "session-1.json"), `{
		"sessionId": "sess-1",
		"startTime": "2024-05-01T10:00:00Z",
		"messages": [
			{"id": "m1", "type": "user", "timestamp": "2024-05-01T10:00:00Z", "content": "hello"},
			{"id": "m2", "type": "gemini", "timestamp": "2024-05-01T10:00:05Z",
			 "model": "gemini-2.5-pro", "content": "hi",
			 "tokens": {"input": 100, "output": 20},
			 "toolCalls": [{"id": "tc1", "name": "read_file", "args": {"path": "x"}}]}
		]
	}`)
	writeFile(t, filepath.Join(root, "logs.json"), `[
		{"sessionId": "sess-1", "type": "info", "message": "started", "timestamp": "2024-05-01T10:00:00Z"},
		{"sessionId": "sess-1", "type": "info", "message": "done"}
	]`)
	writeFile(t, filepath.Join(root, "read_file_1.txt"), `{"status": "ok", "summary": "contents"}`)
	writeFile(t, filepath.Join(root, "broken_1.txt"), `definitely not json`)

	return root
}

func TestRunPipeline(t *testing.T) {
	root := stageFixtures(t)

	result, err := New(&Config{Roots: []string{root}}).Run()
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scan.Matched)
	assert.Equal(t, 3, result.Parse.FilesParsed)
	assert.Equal(t, 1, result.Parse.FilesFailed)
	// the timestamp-less log entry is dropped, not defaulted
	assert.Equal(t, 1, result.Normalize.Dropped)

	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Path, "broken_1.txt")

	require.Len(t, result.Tables.Messages, 2)
	assert.Equal(t, "sess-1", result.Tables.Messages[0].SessionId)
	assert.Equal(t, int64(120), result.Tables.Messages[1].TotalTokens)
	require.Len(t, result.Tables.ToolCalls, 1)
	assert.Equal(t, "read_file", result.Tables.ToolCalls[0].Name)
	assert.Len(t, result.Tables.Logs, 1)
	assert.Len(t, result.Tables.ToolOutputs, 1)
}

func TestRunIsDeterministicAcrossRuns(t *testing.T) {
	root := stageFixtures(t)

	first, err := New(&Config{Roots: []string{root}, Concurrency: 4}).Run()
	require.NoError(t, err)
	second, err := New(&Config{Roots: []string{root}, Concurrency: 1}).Run()
	require.NoError(t, err)

	assert.Equal(t, first.Tables.Messages, second.Tables.Messages)
	assert.Equal(t, first.Tables.Logs, second.Tables.Logs)
	assert.Equal(t, first.Tables.ToolCalls, second.Tables.ToolCalls)
	assert.Equal(t, first.Tables.ToolOutputs, second.Tables.ToolOutputs)
}

func TestRunKeepsLatestSessionCopy(t *testing.T) {
	root := t.TempDir()

	// same session at its original path and in the staging mirror; the
	// mirror copy is stale
	writeFile(t, filepath.Join(root, "chats", "session-dup.json"), `{
		"sessionId": "sess-dup",
		"lastUpdated": "2024-05-01T11:00:00Z",
		"messages": [
			{"id": "m1", "type": "gemini", "timestamp": "2024-05-01T11:00:00Z",
			 "content": "fresh", "tokens": {"input": 10, "output": 1}}
		]
	}`)
	writeFile(t, filepath.Join(root, ".gemini-tmp", "chats", "session-dup.json"), `{
		"sessionId": "sess-dup",
		"lastUpdated": "2024-05-01T10:00:00Z",
		"messages": [
			{"id": "m1", "type": "gemini", "timestamp": "2024-05-01T10:00:00Z",
			 "content": "stale", "tokens": {"input": 99, "output": 9}}
		]
	}`)

	result, err := New(&Config{Roots: []string{root}}).Run()
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deduped.Sessions)
	require.Len(t, result.Tables.Messages, 1)
	assert.Equal(t, "fresh", result.Tables.Messages[0].Content)
	assert.Equal(t, int64(10), result.Tables.Messages[0].InputTokens)
}

func TestRunSessionDedupeFallsBackToMtime(t *testing.T) {
	root := t.TempDir()

	// legacy checkpoints carry no lastUpdated; the newer file wins
	stale := filepath.Join(root, "a", "chats", "old.json")
	fresh := filepath.Join(root, "b", "chats", "old.json")
	writeFile(t, stale, `{"history": [{"role": "user", "text": "stale"}]}`)
	writeFile(t, fresh, `{"history": [{"role": "user", "text": "fresh"}]}`)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	result, err := New(&Config{Roots: []string{root}}).Run()
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deduped.Sessions)
	require.Len(t, result.Tables.Messages, 1)
	assert.Equal(t, "fresh", result.Tables.Messages[0].Content)
}

func TestRunCollapsesStagedLogCopies(t *testing.T) {
	root := t.TempDir()

	entries := `[
		{"sessionId": "s1", "messageId": 1, "type": "info", "message": "one", "timestamp": "2024-05-01T10:00:00Z"},
		{"sessionId": "s1", "messageId": 2, "type": "info", "message": "two", "timestamp": "2024-05-01T10:01:00Z"}
	]`
	writeFile(t, filepath.Join(root, "logs.json"), entries)
	writeFile(t, filepath.Join(root, ".gemini-tmp", "logs.json"), entries)

	result, err := New(&Config{Roots: []string{root}}).Run()
	require.NoError(t, err)

	assert.Equal(t, 2, result.Deduped.Logs)
	require.Len(t, result.Tables.Logs, 2)
	assert.Equal(t, "one", result.Tables.Logs[0].Message)
	assert.Equal(t, "two", result.Tables.Logs[1].Message)
}

func TestDropDuplicateLogsKeepsFirstRowIdentity(t *testing.T) {
	tables := &model.Tables{Logs: []model.LogRow{
		{SessionId: "s1", MessageId: 1, Timestamp: 1000, SourceFile: "a/logs.json"},
		{SessionId: "s1", MessageId: 1, Timestamp: 1000, SourceFile: "b/logs.json"},
		{SessionId: "s1", MessageId: 2, Timestamp: 1000, SourceFile: "b/logs.json"},
	}}

	dropped := dropDuplicateLogs(tables)

	assert.Equal(t, 1, dropped)
	require.Len(t, tables.Logs, 2)
	assert.Equal(t, "a/logs.json", tables.Logs[0].SourceFile)
	assert.Equal(t, int64(2), tables.Logs[1].MessageId)
}

func TestRunEmptyRoot(t *testing.T) {
	result, err := New(&Config{Roots: []string{t.TempDir()}}).Run()
	require.NoError(t, err)

	assert.Equal(t, 0, result.Scan.Matched)
	assert.Equal(t, 0, result.Tables.RowCount())
}
