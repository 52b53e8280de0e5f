package model

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// SessionFile is the current on-disk shape of a Gemini CLI session file
// (chats/*.json). Marker fields for format detection are SessionId plus
// Messages; older checkpoint files carry a History array instead.
type SessionFile struct {
	SessionId   string           `json:"sessionId"`
	ProjectHash string           `json:"projectHash,omitempty"`
	StartTime   string           `json:"startTime,omitempty"`
	LastUpdated string           `json:"lastUpdated,omitempty"`
	Messages    []SessionMessage `json:"messages"`
}

// LegacySessionFile is the older checkpoint shape: a bare history of turns
// with no session metadata. Session id and timestamps are recovered from the
// file itself during normalization.
type LegacySessionFile struct {
	History []LegacyTurn `json:"history"`
}

type LegacyTurn struct {
	Role      string        `json:"role"`
	Text      string        `json:"text,omitempty"`
	Parts     []ContentPart `json:"parts,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Tokens    *TokenUsage   `json:"tokens,omitempty"`
}

type SessionMessage struct {
	Id        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Content   MessageContent `json:"content"`
	Thoughts  []RawThought   `json:"thoughts,omitempty"`
	Tokens    *TokenUsage    `json:"tokens,omitempty"`
	Model     string         `json:"model,omitempty"`
	ToolCalls []RawToolCall  `json:"toolCalls,omitempty"`
}

type TokenUsage struct {
	Input         int `json:"input"`
	Output        int `json:"output"`
	CacheCreation int `json:"cacheCreation"`
	CacheRead     int `json:"cacheRead"`
	Total         int `json:"total"`
}

type RawThought struct {
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`
	Thought     string `json:"thought,omitempty"`
}

// Body returns whichever of the two observed thought text fields is set.
func (t RawThought) Body() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Thought
}

type RawToolCall struct {
	Id        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Result    any            `json:"result,omitempty"`
	Output    any            `json:"output,omitempty"`
	Status    string         `json:"status,omitempty"`
	StartTime string         `json:"startTime,omitempty"`
	EndTime   string         `json:"endTime,omitempty"`
}

// MessageContent accepts the three content encodings found in session files:
// a plain string, a part list, or a single object.
type MessageContent struct {
	Raw   string
	Text  string
	Parts []ContentPart
}

func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	mc.Raw = string(data)

	var str string
	if err := sonic.Unmarshal(data, &str); err == nil {
		mc.Text = str
		return nil
	}

	var parts []ContentPart
	if err := sonic.Unmarshal(data, &parts); err == nil {
		mc.Parts = parts
		return nil
	}

	var part ContentPart
	if err := sonic.Unmarshal(data, &part); err == nil {
		mc.Parts = []ContentPart{part}
		return nil
	}

	return fmt.Errorf("content must be a string, object, or array of parts")
}

func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.Raw != "" {
		return []byte(mc.Raw), nil
	}
	return sonic.Marshal(mc.Text)
}

// Summary extracts a short human-readable preview of the content, truncated
// to limit runes.
func (mc MessageContent) Summary(limit int) string {
	var s string
	if mc.Text != "" {
		s = mc.Text
	} else {
		pieces := make([]string, 0, len(mc.Parts))
		for _, p := range mc.Parts {
			if txt := p.Preview(); txt != "" {
				pieces = append(pieces, txt)
			}
		}
		if len(pieces) > 0 {
			s = strings.Join(pieces, " ")
		} else {
			s = mc.Raw
		}
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// ContentPart is one element of a part-list content value. Parts themselves
// may be bare strings or objects carrying one of several text-ish keys.
type ContentPart struct {
	Text    string `json:"text,omitempty"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var str string
	if err := sonic.Unmarshal(data, &str); err == nil {
		p.Text = str
		return nil
	}

	type plain ContentPart
	var obj plain
	if err := sonic.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = ContentPart(obj)
	return nil
}

func (p ContentPart) Preview() string {
	switch {
	case p.Text != "":
		return p.Text
	case p.Output != "":
		return p.Output
	default:
		return p.Message
	}
}

// Category classifies a discovered source file.
type Category string

const (
	CategorySession       Category = "session"
	CategoryLog           Category = "log"
	CategoryToolOutput    Category = "tool-output"
	CategorySecurityEvent Category = "security-event"
)
