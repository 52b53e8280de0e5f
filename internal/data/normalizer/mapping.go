package normalizer

import (
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Field mapping for the loosely-shaped categories is data, not code: each
// canonical column lists the raw keys that may carry it, in precedence
// order. Supporting a new upstream key is an entry here, not a new branch.

type fieldSpec struct {
	canonical string
	rawKeys   []string
}

var logFieldSpecs = []fieldSpec{
	{"session_id", []string{"sessionId", "session_id"}},
	{"message_id", []string{"messageId", "message_id"}},
	{"level", []string{"type", "level"}},
	{"message", []string{"message", "text"}},
	{"timestamp", []string{"timestamp", "time", "ts"}},
}

var toolOutputFieldSpecs = []fieldSpec{
	{"session_id", []string{"sessionId", "session_id"}},
	{"tool_name", []string{"tool_name", "toolName", "name"}},
	{"status", []string{"status", "state"}},
	{"summary", []string{"summary", "output", "message"}},
	{"timestamp", []string{"timestamp", "time", "ts"}},
}

var securityEventFieldSpecs = []fieldSpec{
	{"session_id", []string{"sessionId", "session_id"}},
	{"event_type", []string{"event_type", "eventType", "type"}},
	{"principal", []string{"principal", "principal_email", "user"}},
	{"severity", []string{"severity", "priority"}},
	{"rule_name", []string{"rule_name", "ruleName", "rule"}},
	{"timestamp", []string{"timestamp", "event_time", "eventTime", "time", "ts"}},
}

// extracted holds the canonical fields pulled out of a raw record plus the
// overflow of everything the specs did not claim.
type extracted struct {
	values   map[string]any
	overflow map[string]any
}

func (e extracted) str(canonical string) string {
	switch v := e.values[canonical].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := sonic.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(data), `"`)
	}
}

func (e extracted) int(canonical string) int64 {
	switch v := e.values[canonical].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func (e extracted) raw(canonical string) any {
	return e.values[canonical]
}

// overflowJSON serializes the unclaimed fields with sorted keys so the
// column is byte-stable across runs.
func (e extracted) overflowJSON() string {
	if len(e.overflow) == 0 {
		return ""
	}
	data, err := sonic.ConfigStd.Marshal(e.overflow)
	if err != nil {
		return ""
	}
	return string(data)
}

// extract applies a spec list to one raw field map. The first present raw
// key wins for each canonical field; all unclaimed keys are preserved in
// the overflow rather than dropped.
func extract(fields map[string]any, specs []fieldSpec) extracted {
	e := extracted{
		values:   make(map[string]any, len(specs)),
		overflow: make(map[string]any),
	}

	claimed := make(map[string]bool)
	for _, spec := range specs {
		for _, key := range spec.rawKeys {
			if v, ok := fields[key]; ok {
				if _, done := e.values[spec.canonical]; !done {
					e.values[spec.canonical] = v
				}
				claimed[key] = true
			}
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !claimed[k] {
			e.overflow[k] = fields[k]
		}
	}
	return e
}
