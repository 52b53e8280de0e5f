package normalizer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/parser"
	"github.com/mdfranz/saruca/internal/util"
)

const summaryLimit = 200

// Stats counts records dropped during normalization. A drop means a record
// had no timestamp and no derivable fallback; it is never coerced to a
// misleading default.
type Stats struct {
	Dropped int
}

func (s Stats) String() string {
	return fmt.Sprintf("dropped=%d", s.Dropped)
}

// Normalizer maps raw parsed records into flat table rows.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// NormalizeFile converts every record of one parsed file into rows of the
// appropriate tables.
func (n *Normalizer) NormalizeFile(res parser.FileResult) (*model.Tables, Stats) {
	tables := &model.Tables{}
	var stats Stats

	for _, rec := range res.Records {
		switch rec.Category {
		case model.CategorySession:
			n.normalizeSession(rec, res.File.ModTime, tables)
		case model.CategoryLog:
			if !n.normalizeLog(rec, tables) {
				stats.Dropped++
			}
		case model.CategoryToolOutput:
			n.normalizeToolOutput(rec, res.File.ModTime, tables)
		case model.CategorySecurityEvent:
			n.normalizeSecurityEvent(rec, res.File.ModTime, tables)
		}
	}
	return tables, stats
}

// normalizeSession explodes one session record into message, tool-call and
// thought rows. Nested structures become flat rows holding the parent
// message index, never nested columns.
func (n *Normalizer) normalizeSession(rec parser.Record, fileModTime int64, tables *model.Tables) {
	session := rec.Session
	if session == nil {
		return
	}

	projectHash := session.ProjectHash
	if projectHash == "" {
		projectHash = ProjectHashFromPath(rec.File)
	}

	sessionStart, ok := util.ParseTimestamp(session.StartTime)
	if !ok {
		sessionStart = time.Unix(fileModTime, 0).UTC()
	}

	userIndex := int64(0)
	for i, msg := range session.Messages {
		msgIndex := int64(i)

		ts, ok := util.ParseTimestamp(msg.Timestamp)
		if !ok {
			// Legacy turns have no per-message timestamps.
			ts = sessionStart
		}
		tsMs := ts.UnixMilli()

		userMsgIndex := int64(-1)
		if msg.Type == "user" {
			userMsgIndex = userIndex
			userIndex++
		}

		row := model.MessageRow{
			SessionId:        session.SessionId,
			ProjectHash:      projectHash,
			MessageId:        msg.Id,
			MessageIndex:     msgIndex,
			UserMessageIndex: userMsgIndex,
			Role:             canonicalRole(msg.Type),
			Timestamp:        tsMs,
			Model:            msg.Model,
			Content:          contentRaw(msg.Content),
			ContentSummary:   msg.Content.Summary(summaryLimit),
			ThoughtCount:     int64(len(msg.Thoughts)),
			ToolCallCount:    int64(len(msg.ToolCalls)),
			SourceFile:       rec.File,
			RecordIndex:      msgIndex,
		}
		if row.Model == "" {
			row.Model = "Unknown"
		}
		if msg.Tokens != nil {
			row.InputTokens = clampTokens(msg.Tokens.Input)
			row.OutputTokens = clampTokens(msg.Tokens.Output)
			row.CacheCreation = clampTokens(msg.Tokens.CacheCreation)
			row.CacheRead = clampTokens(msg.Tokens.CacheRead)
		}
		row.TotalTokens = row.InputTokens + row.OutputTokens
		tables.Messages = append(tables.Messages, row)

		for j, tc := range msg.ToolCalls {
			tables.ToolCalls = append(tables.ToolCalls, model.ToolCallRow{
				SessionId:        session.SessionId,
				ProjectHash:      projectHash,
				MessageId:        msg.Id,
				MessageIndex:     msgIndex,
				UserMessageIndex: userMsgIndex,
				CallId:           tc.Id,
				Name:             tc.Name,
				Args:             stableJSON(tc.Args),
				Status:           toolCallStatus(tc),
				DurationMs:       toolCallDuration(tc),
				ResultRaw:        stableJSON(toolCallResult(tc)),
				Timestamp:        tsMs,
				SourceFile:       rec.File,
				RecordIndex:      msgIndex,
				SubIndex:         int64(j),
			})
		}

		for j, th := range msg.Thoughts {
			tables.Thoughts = append(tables.Thoughts, model.ThoughtRow{
				SessionId:        session.SessionId,
				ProjectHash:      projectHash,
				MessageId:        msg.Id,
				MessageIndex:     msgIndex,
				UserMessageIndex: userMsgIndex,
				Subject:          th.Subject,
				Body:             th.Body(),
				Timestamp:        tsMs,
				SourceFile:       rec.File,
				RecordIndex:      msgIndex,
				SubIndex:         int64(j),
			})
		}
	}
}

// normalizeLog maps one log entry. Returns false when the record lacks a
// timestamp, which has no reasonable default for a log line.
func (n *Normalizer) normalizeLog(rec parser.Record, tables *model.Tables) bool {
	e := extract(rec.Fields, logFieldSpecs)

	ts, ok := util.ParseTimestampValue(e.raw("timestamp"))
	if !ok {
		util.LogDebugf("Drop log record without timestamp: %s[%d]", rec.File, rec.Index)
		return false
	}

	level := e.str("level")
	if level == "" {
		level = "info"
	}

	tables.Logs = append(tables.Logs, model.LogRow{
		SessionId:   e.str("session_id"),
		ProjectHash: ProjectHashFromPath(rec.File),
		MessageId:   e.int("message_id"),
		Level:       level,
		Message:     e.str("message"),
		Timestamp:   ts.UnixMilli(),
		Fields:      e.overflowJSON(),
		SourceFile:  rec.File,
		RecordIndex: rec.Index,
	})
	return true
}

func (n *Normalizer) normalizeToolOutput(rec parser.Record, fileModTime int64, tables *model.Tables) {
	e := extract(rec.Fields, toolOutputFieldSpecs)

	ts, ok := util.ParseTimestampValue(e.raw("timestamp"))
	if !ok {
		ts = time.Unix(fileModTime, 0).UTC()
	}

	toolName := e.str("tool_name")
	if toolName == "" {
		toolName = toolNameFromPath(rec.File)
	}

	summary := e.str("summary")
	if runes := []rune(summary); len(runes) > summaryLimit {
		summary = string(runes[:summaryLimit])
	}

	tables.ToolOutputs = append(tables.ToolOutputs, model.ToolOutputRow{
		SessionId:   e.str("session_id"),
		ProjectHash: ProjectHashFromPath(rec.File),
		ToolName:    toolName,
		Status:      e.str("status"),
		Summary:     summary,
		Timestamp:   ts.UnixMilli(),
		Fields:      e.overflowJSON(),
		SourceFile:  rec.File,
		RecordIndex: rec.Index,
	})
}

func (n *Normalizer) normalizeSecurityEvent(rec parser.Record, fileModTime int64, tables *model.Tables) {
	e := extract(rec.Fields, securityEventFieldSpecs)

	ts, ok := util.ParseTimestampValue(e.raw("timestamp"))
	if !ok {
		ts = time.Unix(fileModTime, 0).UTC()
	}

	tables.SecurityEvents = append(tables.SecurityEvents, model.SecurityEventRow{
		SessionId:   e.str("session_id"),
		ProjectHash: ProjectHashFromPath(rec.File),
		EventType:   e.str("event_type"),
		Principal:   e.str("principal"),
		Severity:    e.str("severity"),
		RuleName:    e.str("rule_name"),
		Timestamp:   ts.UnixMilli(),
		Fields:      e.overflowJSON(),
		SourceFile:  rec.File,
		RecordIndex: rec.Index,
	})
}

func canonicalRole(msgType string) string {
	switch msgType {
	case "user":
		return "user"
	case "gemini", "model", "assistant":
		return "model"
	case "tool":
		return "tool"
	default:
		return "system"
	}
}

func clampTokens(n int) int64 {
	if n < 0 {
		return 0
	}
	return int64(n)
}

func contentRaw(c model.MessageContent) string {
	if c.Raw != "" {
		return c.Raw
	}
	return c.Text
}

// toolCallStatus derives the canonical status. Sources rarely carry an
// explicit status field, so the result payload is inspected for error and
// cancellation markers.
func toolCallStatus(tc model.RawToolCall) string {
	switch strings.ToLower(tc.Status) {
	case "success", "ok", "completed", "done":
		return model.StatusSuccess
	case "error", "failed", "failure":
		return model.StatusError
	case "cancelled", "canceled", "aborted":
		return model.StatusCancelled
	}

	if m, ok := toolCallResult(tc).(map[string]any); ok {
		if _, hasErr := m["error"]; hasErr {
			return model.StatusError
		}
		if cancelled, _ := m["cancelled"].(bool); cancelled {
			return model.StatusCancelled
		}
	}
	return model.StatusSuccess
}

func toolCallResult(tc model.RawToolCall) any {
	if tc.Result != nil {
		return tc.Result
	}
	return tc.Output
}

func toolCallDuration(tc model.RawToolCall) *int64 {
	start, ok1 := util.ParseTimestamp(tc.StartTime)
	end, ok2 := util.ParseTimestamp(tc.EndTime)
	if !ok1 || !ok2 {
		return nil
	}
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return nil
	}
	return &ms
}

// stableJSON serializes a value with sorted map keys; nil becomes the empty
// string rather than "null".
func stableJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// toolNameFromPath recovers the tool name from an output file name, e.g.
// "read_file_20240501.txt" -> "read_file".
func toolNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if idx := strings.LastIndex(base, "_"); idx > 0 {
		return base[:idx]
	}
	return base
}
