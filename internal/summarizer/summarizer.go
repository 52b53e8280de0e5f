package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/mdfranz/saruca/internal/core/model"
	"github.com/mdfranz/saruca/internal/util"
)

const (
	defaultModel   = "gemini-2.5-flash"
	generateURL    = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	maxPromptBytes = 64 * 1024 // bounded window over the conversation
	requestTimeout = 60 * time.Second
)

const systemPrompt = `You are an expert technical assistant who understands data and code and systems.
Summarize the following conversation between a user and an AI model.
Identify any failures to communicate or errors.
Respond with a JSON object: {"title": "...", "key_points": ["..."], "outcome": "..."}`

// Summary is the structured result returned by the model. It is treated as
// an opaque annotation and never parsed further.
type Summary struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
	Outcome   string   `json:"outcome"`
}

// ErrNoAPIKey is returned when neither credential source is set.
var ErrNoAPIKey = fmt.Errorf("no API key: set GEMINI_API_KEY or GOOGLE_API_KEY")

// ResolveAPIKey resolves the API credential once at startup. GEMINI_API_KEY
// takes precedence over GOOGLE_API_KEY.
func ResolveAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// Client calls the Gemini API to summarize sessions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  defaultModel,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// request/response bodies for the generateContent endpoint, limited to the
// fields this client uses.
type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
	GenerationConfig  genConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genConfig struct {
	ResponseMimeType string `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SummarizeSession sends a bounded window of the session's ordered messages
// and decodes the structured summary.
func (c *Client) SummarizeSession(ctx context.Context, messages []model.MessageRow) (*Summary, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: BuildPrompt(messages)}},
		}},
		GenerationConfig: genConfig{ResponseMimeType: "application/json"},
	}

	payload, err := sonic.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf(generateURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call summarization API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded generateResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("summarization API error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty summarization response")
	}

	var summary Summary
	text := decoded.Candidates[0].Content.Parts[0].Text
	if err := sonic.Unmarshal([]byte(text), &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	util.LogDebugf("Summarized session %s: %q", messages[0].SessionId, summary.Title)
	return &summary, nil
}

// BuildPrompt renders the ordered message sequence as conversation text,
// truncated to the prompt window from the end (recent messages win).
func BuildPrompt(messages []model.MessageRow) string {
	var sb strings.Builder

	start := time.UnixMilli(messages[0].Timestamp).UTC()
	end := time.UnixMilli(messages[len(messages)-1].Timestamp).UTC()
	fmt.Fprintf(&sb, "SESSION START: %s\n", start.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "SESSION END:   %s\n(DURATION: %s)\n", end.Format("2006-01-02 15:04:05"), end.Sub(start))
	sb.WriteString(strings.Repeat("-", 20) + "\n")

	lines := make([]string, 0, len(messages))
	total := sb.Len()
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		line := fmt.Sprintf("%s: %s\n", strings.ToUpper(m.Role), m.ContentSummary)
		if total+len(line) > maxPromptBytes {
			break
		}
		total += len(line)
		lines = append(lines, line)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		sb.WriteString(lines[i])
	}
	return sb.String()
}
