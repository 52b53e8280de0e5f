package model

// Flat output row schemas. Column names and types are pinned here; the store
// and the aggregator both consume these and nothing downstream re-reads raw
// files. Every row carries (SourceFile, RecordIndex, SubIndex) as its stable
// identity so repeated exports of the same inputs merge without duplicates.

// RowKey is the stable identity of one exported row.
type RowKey struct {
	SourceFile  string
	RecordIndex int64
	SubIndex    int64
}

type MessageRow struct {
	SessionId        string
	ProjectHash      string
	MessageId        string
	MessageIndex     int64
	UserMessageIndex int64 // -1 for non-user messages
	Role             string
	Timestamp        int64 // unix milliseconds
	Model            string
	InputTokens      int64
	OutputTokens     int64
	CacheCreation    int64
	CacheRead        int64
	TotalTokens      int64
	Content          string
	ContentSummary   string
	ThoughtCount     int64
	ToolCallCount    int64
	SourceFile       string
	RecordIndex      int64
	SubIndex         int64
}

func (r MessageRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

type LogRow struct {
	SessionId   string
	ProjectHash string
	MessageId   int64
	Level       string
	Message     string
	Timestamp   int64
	Fields      string // overflow JSON for open-ended keys
	SourceFile  string
	RecordIndex int64
	SubIndex    int64
}

func (r LogRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

type ToolCallRow struct {
	SessionId        string
	ProjectHash      string
	MessageId        string
	MessageIndex     int64
	UserMessageIndex int64
	CallId           string
	Name             string
	Args             string // flattened JSON
	Status           string // success, error, cancelled
	DurationMs       *int64 // nil when start/end not both present
	ResultRaw        string
	Timestamp        int64 // parent message timestamp
	SourceFile       string
	RecordIndex      int64
	SubIndex         int64
}

func (r ToolCallRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

type ThoughtRow struct {
	SessionId        string
	ProjectHash      string
	MessageId        string
	MessageIndex     int64
	UserMessageIndex int64
	Subject          string
	Body             string
	Timestamp        int64
	SourceFile       string
	RecordIndex      int64
	SubIndex         int64
}

func (r ThoughtRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

type ToolOutputRow struct {
	SessionId   string
	ProjectHash string
	ToolName    string
	Status      string
	Summary     string
	Timestamp   int64
	Fields      string // overflow JSON
	SourceFile  string
	RecordIndex int64
	SubIndex    int64
}

func (r ToolOutputRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

type SecurityEventRow struct {
	SessionId   string
	ProjectHash string
	EventType   string
	Principal   string
	Severity    string
	RuleName    string
	Timestamp   int64
	Fields      string // overflow JSON
	SourceFile  string
	RecordIndex int64
	SubIndex    int64
}

func (r SecurityEventRow) Key() RowKey {
	return RowKey{r.SourceFile, r.RecordIndex, r.SubIndex}
}

// Tables holds one batch of normalized rows, one slice per output table.
type Tables struct {
	Messages       []MessageRow
	Logs           []LogRow
	ToolCalls      []ToolCallRow
	Thoughts       []ThoughtRow
	ToolOutputs    []ToolOutputRow
	SecurityEvents []SecurityEventRow
}

// TableNames lists the persisted tables in their canonical order.
var TableNames = []string{
	"messages", "logs", "tool_calls", "thoughts", "tool_outputs", "security_events",
}

// Append merges another batch into t.
func (t *Tables) Append(other *Tables) {
	if other == nil {
		return
	}
	t.Messages = append(t.Messages, other.Messages...)
	t.Logs = append(t.Logs, other.Logs...)
	t.ToolCalls = append(t.ToolCalls, other.ToolCalls...)
	t.Thoughts = append(t.Thoughts, other.Thoughts...)
	t.ToolOutputs = append(t.ToolOutputs, other.ToolOutputs...)
	t.SecurityEvents = append(t.SecurityEvents, other.SecurityEvents...)
}

// RowCount returns the total number of rows across all tables.
func (t *Tables) RowCount() int {
	return len(t.Messages) + len(t.Logs) + len(t.ToolCalls) +
		len(t.Thoughts) + len(t.ToolOutputs) + len(t.SecurityEvents)
}
