package aggregator

import (
	"sort"
	"strings"

	"github.com/mdfranz/saruca/internal/core/model"
)

// DefaultTopN bounds the ranked lists when no explicit limit is given.
const DefaultTopN = 5

// Options controls scope and ranking of one aggregation pass.
type Options struct {
	TopN          int
	AllProjects   bool   // return every project/tool instead of the top N
	ProjectPrefix string // restrict to projects whose hash has this prefix
}

// Report is the full set of derived statistics. It is a pure function of
// the normalized tables; field names are part of the presentation contract
// and must stay stable.
type Report struct {
	Totals            Totals         `json:"totals"`
	Models            []ModelCount   `json:"models"`
	Tools             []ToolStat     `json:"tools"`
	SessionsByMessage []SessionStat  `json:"sessionsByMessage"`
	SessionsByTokens  []SessionStat  `json:"sessionsByTokens"`
	Projects          []ProjectStat  `json:"projects"`
	ThoughtSubjects   []SubjectCount `json:"thoughtSubjects"`
	Activity          ActivityRange  `json:"activity"`
}

type Totals struct {
	MessageCount       int64 `json:"messageCount"`
	LogCount           int64 `json:"logCount"`
	ToolCallCount      int64 `json:"toolCallCount"`
	ThoughtCount       int64 `json:"thoughtCount"`
	ToolOutputCount    int64 `json:"toolOutputCount"`
	SecurityEventCount int64 `json:"securityEventCount"`
	SessionCount       int64 `json:"sessionCount"`
	ProjectCount       int64 `json:"projectCount"`
	InputTokens        int64 `json:"inputTokens"`
	OutputTokens       int64 `json:"outputTokens"`
	CacheCreation      int64 `json:"cacheCreation"`
	CacheRead          int64 `json:"cacheRead"`
	TotalTokens        int64 `json:"totalTokens"`
}

type ModelCount struct {
	Model    string `json:"model"`
	Messages int64  `json:"messages"`
}

type ToolStat struct {
	Name      string `json:"name"`
	Calls     int64  `json:"calls"`
	Success   int64  `json:"success"`
	Error     int64  `json:"error"`
	Cancelled int64  `json:"cancelled"`
}

type SessionStat struct {
	SessionId    string `json:"sessionId"`
	ProjectHash  string `json:"projectHash"`
	MessageCount int64  `json:"messageCount"`
	TotalTokens  int64  `json:"totalTokens"`
	StartMs      int64  `json:"startMs"`
	EndMs        int64  `json:"endMs"`
	FirstLine    string `json:"firstLine"` // first user prompt, as a label
}

type ProjectStat struct {
	ProjectHash    string `json:"projectHash"`
	SessionCount   int64  `json:"sessionCount"`
	MessageCount   int64  `json:"messageCount"`
	TotalTokens    int64  `json:"totalTokens"`
	LastActivityMs int64  `json:"lastActivityMs"`
	Description    string `json:"description"` // first user prompt in the project
}

type SubjectCount struct {
	Subject string `json:"subject"`
	Count   int64  `json:"count"`
}

type ActivityRange struct {
	StartMs int64 `json:"startMs"`
	EndMs   int64 `json:"endMs"`
}

// Aggregate computes the report for one set of normalized tables. Given
// identical tables it returns identical output, including the order of
// ranked lists: every sort breaks count ties by identifier.
func Aggregate(t *model.Tables, opt Options) *Report {
	if opt.TopN <= 0 {
		opt.TopN = DefaultTopN
	}
	if opt.ProjectPrefix != "" {
		t = filterByProject(t, opt.ProjectPrefix)
	}

	r := &Report{}
	r.Totals = totals(t)
	r.Models = modelCounts(t.Messages)
	r.Tools = toolStats(t.ToolCalls, opt)
	sessions := sessionStats(t.Messages)
	r.SessionsByMessage = topSessions(sessions, opt.TopN, func(a, b SessionStat) bool {
		if a.MessageCount != b.MessageCount {
			return a.MessageCount > b.MessageCount
		}
		return a.SessionId < b.SessionId
	})
	r.SessionsByTokens = topSessions(sessions, opt.TopN, func(a, b SessionStat) bool {
		if a.TotalTokens != b.TotalTokens {
			return a.TotalTokens > b.TotalTokens
		}
		return a.SessionId < b.SessionId
	})
	r.Projects = projectStats(t.Messages, opt)
	r.ThoughtSubjects = thoughtSubjects(t.Thoughts, opt.TopN)
	r.Activity = activityRange(t)
	r.Totals.SessionCount = int64(len(sessions))
	r.Totals.ProjectCount = countProjects(t.Messages)
	return r
}

func filterByProject(t *model.Tables, prefix string) *model.Tables {
	out := &model.Tables{}
	for _, r := range t.Messages {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.Messages = append(out.Messages, r)
		}
	}
	for _, r := range t.Logs {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.Logs = append(out.Logs, r)
		}
	}
	for _, r := range t.ToolCalls {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.ToolCalls = append(out.ToolCalls, r)
		}
	}
	for _, r := range t.Thoughts {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.Thoughts = append(out.Thoughts, r)
		}
	}
	for _, r := range t.ToolOutputs {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.ToolOutputs = append(out.ToolOutputs, r)
		}
	}
	for _, r := range t.SecurityEvents {
		if strings.HasPrefix(r.ProjectHash, prefix) {
			out.SecurityEvents = append(out.SecurityEvents, r)
		}
	}
	return out
}

func totals(t *model.Tables) Totals {
	out := Totals{
		MessageCount:       int64(len(t.Messages)),
		LogCount:           int64(len(t.Logs)),
		ToolCallCount:      int64(len(t.ToolCalls)),
		ThoughtCount:       int64(len(t.Thoughts)),
		ToolOutputCount:    int64(len(t.ToolOutputs)),
		SecurityEventCount: int64(len(t.SecurityEvents)),
	}
	for _, m := range t.Messages {
		out.InputTokens += m.InputTokens
		out.OutputTokens += m.OutputTokens
		out.CacheCreation += m.CacheCreation
		out.CacheRead += m.CacheRead
		out.TotalTokens += m.TotalTokens
	}
	return out
}

func modelCounts(messages []model.MessageRow) []ModelCount {
	counts := make(map[string]int64)
	for _, m := range messages {
		name := m.Model
		if name == "" {
			name = "Unknown"
		}
		counts[name]++
	}

	out := make([]ModelCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, ModelCount{Model: name, Messages: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Messages != out[j].Messages {
			return out[i].Messages > out[j].Messages
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func toolStats(calls []model.ToolCallRow, opt Options) []ToolStat {
	byName := make(map[string]*ToolStat)
	for _, c := range calls {
		st, ok := byName[c.Name]
		if !ok {
			st = &ToolStat{Name: c.Name}
			byName[c.Name] = st
		}
		st.Calls++
		switch c.Status {
		case model.StatusError:
			st.Error++
		case model.StatusCancelled:
			st.Cancelled++
		default:
			st.Success++
		}
	}

	out := make([]ToolStat, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Name < out[j].Name
	})
	if !opt.AllProjects && len(out) > opt.TopN {
		out = out[:opt.TopN]
	}
	return out
}

func sessionStats(messages []model.MessageRow) []SessionStat {
	type acc struct {
		stat        SessionStat
		firstUserTs int64
	}
	byId := make(map[string]*acc)
	for _, m := range messages {
		a, ok := byId[m.SessionId]
		if !ok {
			a = &acc{stat: SessionStat{
				SessionId:   m.SessionId,
				ProjectHash: m.ProjectHash,
				StartMs:     m.Timestamp,
				EndMs:       m.Timestamp,
			}}
			byId[m.SessionId] = a
		}
		a.stat.MessageCount++
		a.stat.TotalTokens += m.TotalTokens
		if m.Timestamp < a.stat.StartMs {
			a.stat.StartMs = m.Timestamp
		}
		if m.Timestamp > a.stat.EndMs {
			a.stat.EndMs = m.Timestamp
		}
		if m.Role == "user" && (a.stat.FirstLine == "" || m.Timestamp < a.firstUserTs) {
			a.stat.FirstLine = m.ContentSummary
			a.firstUserTs = m.Timestamp
		}
	}

	out := make([]SessionStat, 0, len(byId))
	for _, a := range byId {
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionId < out[j].SessionId })
	return out
}

func topSessions(sessions []SessionStat, topN int, less func(a, b SessionStat) bool) []SessionStat {
	out := make([]SessionStat, len(sessions))
	copy(out, sessions)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func projectStats(messages []model.MessageRow, opt Options) []ProjectStat {
	type acc struct {
		stat        ProjectStat
		sessions    map[string]struct{}
		firstUserTs int64
	}
	byHash := make(map[string]*acc)
	for _, m := range messages {
		a, ok := byHash[m.ProjectHash]
		if !ok {
			a = &acc{
				stat:     ProjectStat{ProjectHash: m.ProjectHash},
				sessions: make(map[string]struct{}),
			}
			byHash[m.ProjectHash] = a
		}
		a.sessions[m.SessionId] = struct{}{}
		a.stat.MessageCount++
		a.stat.TotalTokens += m.TotalTokens
		if m.Timestamp > a.stat.LastActivityMs {
			a.stat.LastActivityMs = m.Timestamp
		}
		if m.Role == "user" && (a.stat.Description == "" || m.Timestamp < a.firstUserTs) {
			a.stat.Description = m.ContentSummary
			a.firstUserTs = m.Timestamp
		}
	}

	out := make([]ProjectStat, 0, len(byHash))
	for _, a := range byHash {
		a.stat.SessionCount = int64(len(a.sessions))
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageCount != out[j].MessageCount {
			return out[i].MessageCount > out[j].MessageCount
		}
		return out[i].ProjectHash < out[j].ProjectHash
	})
	if !opt.AllProjects && len(out) > opt.TopN {
		out = out[:opt.TopN]
	}
	return out
}

func thoughtSubjects(thoughts []model.ThoughtRow, topN int) []SubjectCount {
	counts := make(map[string]int64)
	for _, th := range thoughts {
		if th.Subject == "" {
			continue
		}
		counts[th.Subject]++
	}

	out := make([]SubjectCount, 0, len(counts))
	for subject, n := range counts {
		out = append(out, SubjectCount{Subject: subject, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Subject < out[j].Subject
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func countProjects(messages []model.MessageRow) int64 {
	seen := make(map[string]struct{})
	for _, m := range messages {
		seen[m.ProjectHash] = struct{}{}
	}
	return int64(len(seen))
}

func activityRange(t *model.Tables) ActivityRange {
	var r ActivityRange
	observe := func(ts int64) {
		if ts == 0 {
			return
		}
		if r.StartMs == 0 || ts < r.StartMs {
			r.StartMs = ts
		}
		if ts > r.EndMs {
			r.EndMs = ts
		}
	}
	for _, m := range t.Messages {
		observe(m.Timestamp)
	}
	for _, l := range t.Logs {
		observe(l.Timestamp)
	}
	return r
}
