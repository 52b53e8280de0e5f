package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/parser"
	"github.com/mdfranz/saruca/internal/data/scanner"
)

func sessionResult(session *model.SessionFile, path string, modTime int64) parser.FileResult {
	return parser.FileResult{
		File: scanner.SourceFile{Path: path, Category: model.CategorySession, ModTime: modTime},
		Records: []parser.Record{{
			Category: model.CategorySession,
			File:     path,
			Session:  session,
		}},
	}
}

func TestNormalizeSessionMessages(t *testing.T) {
	session := &model.SessionFile{
		SessionId:   "sess-1",
		ProjectHash: "hash-1",
		StartTime:   "2024-05-01T10:00:00Z",
		Messages: []model.SessionMessage{
			{
				Id:        "m1",
				Type:      "user",
				Timestamp: "2024-05-01T10:00:00Z",
				Content:   model.MessageContent{Text: "first question"},
			},
			{
				Id:        "m2",
				Type:      "gemini",
				Timestamp: "2024-05-01T10:00:05Z",
				Model:     "gemini-2.5-pro",
				Content:   model.MessageContent{Text: "answer"},
				Tokens:    &model.TokenUsage{Input: 100, Output: 20, CacheRead: 10},
			},
			{
				Id:        "m3",
				Type:      "user",
				Timestamp: "2024-05-01T10:01:00Z",
				Content:   model.MessageContent{Text: "second question"},
			},
		},
	}

	tables, stats := New().NormalizeFile(sessionResult(session, "/data/chats/s.json", 0))
	assert.Equal(t, 0, stats.Dropped)
	require.Len(t, tables.Messages, 3)

	first := tables.Messages[0]
	assert.Equal(t, "sess-1", first.SessionId)
	assert.Equal(t, "hash-1", first.ProjectHash)
	assert.Equal(t, "user", first.Role)
	assert.Equal(t, int64(0), first.MessageIndex)
	assert.Equal(t, int64(0), first.UserMessageIndex)
	assert.Equal(t, int64(1714557600000), first.Timestamp)
	assert.Equal(t, "Unknown", first.Model)

	second := tables.Messages[1]
	assert.Equal(t, "model", second.Role)
	assert.Equal(t, int64(-1), second.UserMessageIndex)
	assert.Equal(t, "gemini-2.5-pro", second.Model)
	assert.Equal(t, int64(100), second.InputTokens)
	assert.Equal(t, int64(20), second.OutputTokens)
	assert.Equal(t, int64(10), second.CacheRead)
	assert.Equal(t, int64(120), second.TotalTokens)

	// user message ordinal counts only user messages
	assert.Equal(t, int64(1), tables.Messages[2].UserMessageIndex)
}

func TestNormalizeSessionNegativeTokensClamped(t *testing.T) {
	session := &model.SessionFile{
		SessionId: "sess-1",
		Messages: []model.SessionMessage{{
			Type:      "gemini",
			Timestamp: "2024-05-01T10:00:00Z",
			Tokens:    &model.TokenUsage{Input: -5, Output: 7},
		}},
	}

	tables, _ := New().NormalizeFile(sessionResult(session, "/data/chats/s.json", 0))
	require.Len(t, tables.Messages, 1)
	assert.Equal(t, int64(0), tables.Messages[0].InputTokens)
	assert.Equal(t, int64(7), tables.Messages[0].TotalTokens)
}

func TestNormalizeSessionExplodesNestedRows(t *testing.T) {
	session := &model.SessionFile{
		SessionId: "sess-1",
		Messages: []model.SessionMessage{{
			Id:        "m1",
			Type:      "gemini",
			Timestamp: "2024-05-01T10:00:00Z",
			Thoughts: []model.RawThought{
				{Subject: "Planning", Description: "find the file"},
				{Thought: "second pass"},
			},
			ToolCalls: []model.RawToolCall{
				{
					Id:        "tc1",
					Name:      "read_file",
					Args:      map[string]any{"path": "main.go", "limit": float64(10)},
					Result:    map[string]any{"output": "package main"},
					StartTime: "2024-05-01T10:00:00Z",
					EndTime:   "2024-05-01T10:00:02Z",
				},
				{
					Id:     "tc2",
					Name:   "run_command",
					Result: map[string]any{"error": "exit 1"},
				},
			},
		}},
	}

	tables, _ := New().NormalizeFile(sessionResult(session, "/data/chats/s.json", 0))

	require.Len(t, tables.Messages, 1)
	assert.Equal(t, int64(2), tables.Messages[0].ThoughtCount)
	assert.Equal(t, int64(2), tables.Messages[0].ToolCallCount)

	require.Len(t, tables.ToolCalls, 2)
	tc := tables.ToolCalls[0]
	assert.Equal(t, "read_file", tc.Name)
	assert.Equal(t, int64(0), tc.MessageIndex)
	assert.Equal(t, int64(0), tc.SubIndex)
	assert.Equal(t, `{"limit":10,"path":"main.go"}`, tc.Args)
	assert.Equal(t, model.StatusSuccess, tc.Status)
	require.NotNil(t, tc.DurationMs)
	assert.Equal(t, int64(2000), *tc.DurationMs)

	failed := tables.ToolCalls[1]
	assert.Equal(t, model.StatusError, failed.Status)
	assert.Nil(t, failed.DurationMs)
	assert.Equal(t, int64(1), failed.SubIndex)

	require.Len(t, tables.Thoughts, 2)
	assert.Equal(t, "Planning", tables.Thoughts[0].Subject)
	assert.Equal(t, "find the file", tables.Thoughts[0].Body)
	assert.Equal(t, "second pass", tables.Thoughts[1].Body)
	assert.Equal(t, int64(0), tables.Thoughts[0].MessageIndex)
}

func TestNormalizeSessionProjectHashFallback(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	session := &model.SessionFile{
		SessionId: "sess-1",
		Messages: []model.SessionMessage{{
			Type:      "user",
			Timestamp: "2024-05-01T10:00:00Z",
		}},
	}

	path := "/home/u/.gemini-tmp/" + hash + "/chats/s.json"
	tables, _ := New().NormalizeFile(sessionResult(session, path, 0))
	require.Len(t, tables.Messages, 1)
	assert.Equal(t, hash, tables.Messages[0].ProjectHash)
}

func TestNormalizeSessionLegacyTimestampFallback(t *testing.T) {
	session := &model.SessionFile{
		SessionId: "old",
		Messages:  []model.SessionMessage{{Type: "user"}},
	}

	modTime := int64(1714557600)
	tables, _ := New().NormalizeFile(sessionResult(session, "/data/chats/old.json", modTime))
	require.Len(t, tables.Messages, 1)
	assert.Equal(t, modTime*1000, tables.Messages[0].Timestamp)
}

func TestNormalizeLog(t *testing.T) {
	res := parser.FileResult{
		File: scanner.SourceFile{Path: "/data/logs.json", Category: model.CategoryLog},
		Records: []parser.Record{
			{
				Category: model.CategoryLog,
				File:     "/data/logs.json",
				Index:    0,
				Fields: map[string]any{
					"sessionId": "s1",
					"messageId": float64(7),
					"type":      "info",
					"message":   "agent started",
					"timestamp": "2024-05-01T10:00:00Z",
					"extra":     "kept",
				},
			},
			{
				Category: model.CategoryLog,
				File:     "/data/logs.json",
				Index:    1,
				Fields:   map[string]any{"message": "no timestamp here"},
			},
		},
	}

	tables, stats := New().NormalizeFile(res)

	// the timestamp-less record is dropped and counted, never defaulted
	assert.Equal(t, 1, stats.Dropped)
	require.Len(t, tables.Logs, 1)

	row := tables.Logs[0]
	assert.Equal(t, "s1", row.SessionId)
	assert.Equal(t, int64(7), row.MessageId)
	assert.Equal(t, "info", row.Level)
	assert.Equal(t, "agent started", row.Message)
	assert.Equal(t, int64(1714557600000), row.Timestamp)
	assert.Equal(t, `{"extra":"kept"}`, row.Fields)
}

func TestNormalizeLogDefaultLevel(t *testing.T) {
	res := parser.FileResult{
		File: scanner.SourceFile{Path: "/data/logs.json", Category: model.CategoryLog},
		Records: []parser.Record{{
			Category: model.CategoryLog,
			File:     "/data/logs.json",
			Fields: map[string]any{
				"message":   "bare",
				"timestamp": "2024-05-01T10:00:00Z",
			},
		}},
	}

	tables, _ := New().NormalizeFile(res)
	require.Len(t, tables.Logs, 1)
	assert.Equal(t, "info", tables.Logs[0].Level)
}

func TestNormalizeToolOutput(t *testing.T) {
	res := parser.FileResult{
		File: scanner.SourceFile{
			Path:     "/data/read_file_20240501.txt",
			Category: model.CategoryToolOutput,
			ModTime:  1714557600,
		},
		Records: []parser.Record{{
			Category: model.CategoryToolOutput,
			File:     "/data/read_file_20240501.txt",
			Fields: map[string]any{
				"status":  "ok",
				"summary": "file contents",
			},
		}},
	}

	tables, _ := New().NormalizeFile(res)
	require.Len(t, tables.ToolOutputs, 1)

	row := tables.ToolOutputs[0]
	// tool name recovered from the file name, timestamp from mtime
	assert.Equal(t, "read_file", row.ToolName)
	assert.Equal(t, "ok", row.Status)
	assert.Equal(t, "file contents", row.Summary)
	assert.Equal(t, int64(1714557600000), row.Timestamp)
}

func TestNormalizeSecurityEvent(t *testing.T) {
	res := parser.FileResult{
		File: scanner.SourceFile{
			Path:     "/data/search_security_events_1.txt",
			Category: model.CategorySecurityEvent,
		},
		Records: []parser.Record{{
			Category: model.CategorySecurityEvent,
			File:     "/data/search_security_events_1.txt",
			Fields: map[string]any{
				"event_type": "RULE_DETECTION",
				"principal":  "alice@example.com",
				"severity":   "HIGH",
				"rule_name":  "suspicious_dns",
				"timestamp":  "2024-05-01T10:00:00Z",
				"raw_log":    "details",
			},
		}},
	}

	tables, _ := New().NormalizeFile(res)
	require.Len(t, tables.SecurityEvents, 1)

	row := tables.SecurityEvents[0]
	assert.Equal(t, "RULE_DETECTION", row.EventType)
	assert.Equal(t, "alice@example.com", row.Principal)
	assert.Equal(t, "HIGH", row.Severity)
	assert.Equal(t, "suspicious_dns", row.RuleName)
	assert.Equal(t, `{"raw_log":"details"}`, row.Fields)
}

func TestToolCallStatus(t *testing.T) {
	tests := []struct {
		name     string
		call     model.RawToolCall
		expected string
	}{
		{
			name:     "explicit success",
			call:     model.RawToolCall{Status: "Success"},
			expected: model.StatusSuccess,
		},
		{
			name:     "explicit failure",
			call:     model.RawToolCall{Status: "failed"},
			expected: model.StatusError,
		},
		{
			name:     "explicit cancelled",
			call:     model.RawToolCall{Status: "canceled"},
			expected: model.StatusCancelled,
		},
		{
			name:     "error key in result",
			call:     model.RawToolCall{Result: map[string]any{"error": "boom"}},
			expected: model.StatusError,
		},
		{
			name:     "cancelled flag in output",
			call:     model.RawToolCall{Output: map[string]any{"cancelled": true}},
			expected: model.StatusCancelled,
		},
		{
			name:     "default success",
			call:     model.RawToolCall{Result: map[string]any{"output": "fine"}},
			expected: model.StatusSuccess,
		},
		{
			name:     "no result at all",
			call:     model.RawToolCall{},
			expected: model.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toolCallStatus(tt.call))
		})
	}
}

func TestToolCallDuration(t *testing.T) {
	d := toolCallDuration(model.RawToolCall{
		StartTime: "2024-05-01T10:00:00Z",
		EndTime:   "2024-05-01T10:00:03Z",
	})
	require.NotNil(t, d)
	assert.Equal(t, int64(3000), *d)

	assert.Nil(t, toolCallDuration(model.RawToolCall{StartTime: "2024-05-01T10:00:00Z"}))
	assert.Nil(t, toolCallDuration(model.RawToolCall{
		StartTime: "2024-05-01T10:00:05Z",
		EndTime:   "2024-05-01T10:00:00Z",
	}))
}

func TestToolNameFromPath(t *testing.T) {
	assert.Equal(t, "read_file", toolNameFromPath("/data/read_file_20240501.txt"))
	assert.Equal(t, "run_shell_command", toolNameFromPath("run_shell_command_2.txt"))
	assert.Equal(t, "output", toolNameFromPath("output.txt"))
}
