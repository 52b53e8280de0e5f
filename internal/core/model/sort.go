package model

import "sort"

func keyLess(a, b RowKey) bool {
	if a.SourceFile != b.SourceFile {
		return a.SourceFile < b.SourceFile
	}
	if a.RecordIndex != b.RecordIndex {
		return a.RecordIndex < b.RecordIndex
	}
	return a.SubIndex < b.SubIndex
}

// Sort orders every table by row identity. Parallel parsing delivers batches
// in completion order; this restores a reproducible row order before
// aggregation or export.
func (t *Tables) Sort() {
	sort.Slice(t.Messages, func(i, j int) bool { return keyLess(t.Messages[i].Key(), t.Messages[j].Key()) })
	sort.Slice(t.Logs, func(i, j int) bool { return keyLess(t.Logs[i].Key(), t.Logs[j].Key()) })
	sort.Slice(t.ToolCalls, func(i, j int) bool { return keyLess(t.ToolCalls[i].Key(), t.ToolCalls[j].Key()) })
	sort.Slice(t.Thoughts, func(i, j int) bool { return keyLess(t.Thoughts[i].Key(), t.Thoughts[j].Key()) })
	sort.Slice(t.ToolOutputs, func(i, j int) bool { return keyLess(t.ToolOutputs[i].Key(), t.ToolOutputs[j].Key()) })
	sort.Slice(t.SecurityEvents, func(i, j int) bool { return keyLess(t.SecurityEvents[i].Key(), t.SecurityEvents[j].Key()) })
}
