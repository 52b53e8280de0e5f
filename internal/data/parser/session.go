package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/data/scanner"
	"github.com/mdfranz/saruca/internal/util"
)

// sessionMarkers is the probe used to detect which session-file shape a
// chats/*.json file carries before committing to a typed decode.
type sessionMarkers struct {
	SessionId string          `json:"sessionId"`
	Messages  json.RawMessage `json:"messages"`
	History   json.RawMessage `json:"history"`
}

// parseSession decodes a session file. Two shapes are supported:
//
//   - current: {sessionId, projectHash, startTime, lastUpdated, messages: [...]}
//   - legacy:  {history: [...]} or a bare top-level turn array
//
// Dispatch is on marker fields, not file extension. A malformed message
// inside an otherwise valid file is skipped and counted, never fatal.
func (p *Parser) parseSession(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		result.Err = fmt.Errorf("empty session file: %s", sf.Path)
		return result
	}

	if trimmed[0] == '[' {
		return p.parseLegacyTurns(sf, trimmed)
	}

	var markers sessionMarkers
	if err := sonic.Unmarshal(trimmed, &markers); err != nil {
		result.Err = fmt.Errorf("decode session %s: %w", sf.Path, err)
		return result
	}

	if markers.SessionId != "" && len(markers.Messages) > 0 {
		return p.parseCurrentSession(sf, trimmed)
	}
	if len(markers.History) > 0 {
		return p.parseLegacyTurns(sf, markers.History)
	}

	result.Err = fmt.Errorf("unrecognized session shape: %s", sf.Path)
	return result
}

// parseCurrentSession decodes the current shape, dropping individual
// messages that fail to decode rather than rejecting the file.
func (p *Parser) parseCurrentSession(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}

	var envelope struct {
		SessionId   string            `json:"sessionId"`
		ProjectHash string            `json:"projectHash"`
		StartTime   string            `json:"startTime"`
		LastUpdated string            `json:"lastUpdated"`
		Messages    []json.RawMessage `json:"messages"`
	}
	if err := sonic.Unmarshal(data, &envelope); err != nil {
		result.Err = fmt.Errorf("decode session %s: %w", sf.Path, err)
		return result
	}

	session := &model.SessionFile{
		SessionId:   envelope.SessionId,
		ProjectHash: envelope.ProjectHash,
		StartTime:   envelope.StartTime,
		LastUpdated: envelope.LastUpdated,
	}
	for i, raw := range envelope.Messages {
		var msg model.SessionMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			util.LogDebugf("Skip invalid message %s[%d]: %v", sf.Path, i, err)
			result.Skipped++
			continue
		}
		session.Messages = append(session.Messages, msg)
	}

	result.Records = []Record{{
		Category: model.CategorySession,
		File:     sf.Path,
		Session:  session,
	}}
	return result
}

// parseLegacyTurns decodes the legacy history shape. Session id falls back
// to the file name and timestamps to the file mtime; turn roles map onto the
// current message types so one normalization path serves both variants.
func (p *Parser) parseLegacyTurns(sf scanner.SourceFile, data []byte) FileResult {
	result := FileResult{File: sf}

	var raw []json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		result.Err = fmt.Errorf("decode legacy session %s: %w", sf.Path, err)
		return result
	}

	session := &model.SessionFile{
		SessionId: sessionIdFromPath(sf.Path),
	}
	for i, item := range raw {
		var turn model.LegacyTurn
		if err := sonic.Unmarshal(item, &turn); err != nil {
			util.LogDebugf("Skip invalid turn %s[%d]: %v", sf.Path, i, err)
			result.Skipped++
			continue
		}
		session.Messages = append(session.Messages, legacyTurnToMessage(turn))
	}

	result.Records = []Record{{
		Category: model.CategorySession,
		File:     sf.Path,
		Session:  session,
	}}
	return result
}

func legacyTurnToMessage(turn model.LegacyTurn) model.SessionMessage {
	msgType := turn.Role
	if msgType == "model" || msgType == "assistant" {
		msgType = "gemini"
	}

	content := model.MessageContent{Text: turn.Text, Parts: turn.Parts}
	return model.SessionMessage{
		Timestamp: turn.Timestamp,
		Type:      msgType,
		Content:   content,
		Tokens:    turn.Tokens,
	}
}

// sessionIdFromPath derives a session id for files that predate session
// metadata, e.g. "chats/session-2024-05-01.json" -> "session-2024-05-01".
func sessionIdFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
