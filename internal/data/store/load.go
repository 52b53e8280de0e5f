package store

import (
	"database/sql"
	"fmt"

	"github.com/mdfranz/saruca/internal/core/model"
)

// Load reads every persisted table back into in-memory form, ordered by row
// identity so analysis over a reloaded store is reproducible.
func (s *Store) Load() (*model.Tables, error) {
	t := &model.Tables{}

	if err := s.loadMessages(t); err != nil {
		return nil, err
	}
	if err := s.loadLogs(t); err != nil {
		return nil, err
	}
	if err := s.loadToolCalls(t); err != nil {
		return nil, err
	}
	if err := s.loadThoughts(t); err != nil {
		return nil, err
	}
	if err := s.loadToolOutputs(t); err != nil {
		return nil, err
	}
	if err := s.loadSecurityEvents(t); err != nil {
		return nil, err
	}
	return t, nil
}

const rowOrder = " ORDER BY source_file, record_index, sub_index"

func (s *Store) loadMessages(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, message_id, message_index,
		user_message_index, role, timestamp, model, input_tokens, output_tokens,
		cache_creation, cache_read, total_tokens, content, content_summary,
		thought_count, tool_call_count, source_file, record_index, sub_index
		FROM messages` + rowOrder)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.MessageRow
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.MessageId, &r.MessageIndex,
			&r.UserMessageIndex, &r.Role, &r.Timestamp, &r.Model, &r.InputTokens,
			&r.OutputTokens, &r.CacheCreation, &r.CacheRead, &r.TotalTokens,
			&r.Content, &r.ContentSummary, &r.ThoughtCount, &r.ToolCallCount,
			&r.SourceFile, &r.RecordIndex, &r.SubIndex); err != nil {
			return fmt.Errorf("scan messages: %w", err)
		}
		t.Messages = append(t.Messages, r)
	}
	return rows.Err()
}

func (s *Store) loadLogs(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, message_id, level, message,
		timestamp, fields, source_file, record_index, sub_index FROM logs` + rowOrder)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.LogRow
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.MessageId, &r.Level,
			&r.Message, &r.Timestamp, &r.Fields, &r.SourceFile, &r.RecordIndex,
			&r.SubIndex); err != nil {
			return fmt.Errorf("scan logs: %w", err)
		}
		t.Logs = append(t.Logs, r)
	}
	return rows.Err()
}

func (s *Store) loadToolCalls(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, message_id, message_index,
		user_message_index, call_id, name, args, status, duration_ms, result_raw,
		timestamp, source_file, record_index, sub_index FROM tool_calls` + rowOrder)
	if err != nil {
		return fmt.Errorf("load tool_calls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.ToolCallRow
		var duration sql.NullInt64
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.MessageId, &r.MessageIndex,
			&r.UserMessageIndex, &r.CallId, &r.Name, &r.Args, &r.Status, &duration,
			&r.ResultRaw, &r.Timestamp, &r.SourceFile, &r.RecordIndex, &r.SubIndex); err != nil {
			return fmt.Errorf("scan tool_calls: %w", err)
		}
		if duration.Valid {
			v := duration.Int64
			r.DurationMs = &v
		}
		t.ToolCalls = append(t.ToolCalls, r)
	}
	return rows.Err()
}

func (s *Store) loadThoughts(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, message_id, message_index,
		user_message_index, subject, body, timestamp, source_file, record_index,
		sub_index FROM thoughts` + rowOrder)
	if err != nil {
		return fmt.Errorf("load thoughts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.ThoughtRow
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.MessageId, &r.MessageIndex,
			&r.UserMessageIndex, &r.Subject, &r.Body, &r.Timestamp, &r.SourceFile,
			&r.RecordIndex, &r.SubIndex); err != nil {
			return fmt.Errorf("scan thoughts: %w", err)
		}
		t.Thoughts = append(t.Thoughts, r)
	}
	return rows.Err()
}

func (s *Store) loadToolOutputs(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, tool_name, status, summary,
		timestamp, fields, source_file, record_index, sub_index FROM tool_outputs` + rowOrder)
	if err != nil {
		return fmt.Errorf("load tool_outputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.ToolOutputRow
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.ToolName, &r.Status,
			&r.Summary, &r.Timestamp, &r.Fields, &r.SourceFile, &r.RecordIndex,
			&r.SubIndex); err != nil {
			return fmt.Errorf("scan tool_outputs: %w", err)
		}
		t.ToolOutputs = append(t.ToolOutputs, r)
	}
	return rows.Err()
}

func (s *Store) loadSecurityEvents(t *model.Tables) error {
	rows, err := s.db.Query(`SELECT session_id, project_hash, event_type, principal,
		severity, rule_name, timestamp, fields, source_file, record_index, sub_index
		FROM security_events` + rowOrder)
	if err != nil {
		return fmt.Errorf("load security_events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.SecurityEventRow
		if err := rows.Scan(&r.SessionId, &r.ProjectHash, &r.EventType, &r.Principal,
			&r.Severity, &r.RuleName, &r.Timestamp, &r.Fields, &r.SourceFile,
			&r.RecordIndex, &r.SubIndex); err != nil {
			return fmt.Errorf("scan security_events: %w", err)
		}
		t.SecurityEvents = append(t.SecurityEvents, r)
	}
	return rows.Err()
}
