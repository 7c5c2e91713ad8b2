// Package history implements the append-only execution history and the
// derivation of the "live context" a node executor sees, per spec §3/§4.B.
package history

import (
	"sync"

	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// History is the append-only log of node executions for one invocation.
// ExecutionIndex equals the insertion position and is assigned here.
//
// History is safe for concurrent read/append from a single invocation's
// cooperative scheduler; it is not shared across invocations.
type History struct {
	mu      sync.Mutex
	records []toolgraph.HistoryRecord
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// Append records a completed node execution and returns its assigned
// execution-index.
func (h *History) Append(rec toolgraph.HistoryRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.ExecutionIndex = len(h.records)
	h.records = append(h.records, rec)
	return rec.ExecutionIndex
}

// Len returns the number of records appended so far.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Records returns a snapshot copy of every record appended so far.
func (h *History) Records() []toolgraph.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]toolgraph.HistoryRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Before returns a snapshot of every record with ExecutionIndex < index,
// used both for the live context fed to the node about to run at `index`
// and for retrospective reconstruction of the context at any past index.
func (h *History) Before(index int) []toolgraph.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index > len(h.records) {
		index = len(h.records)
	}
	if index < 0 {
		index = 0
	}
	out := make([]toolgraph.HistoryRecord, index)
	copy(out, h.records[:index])
	return out
}

// Last returns the most recently appended record, if any.
func (h *History) Last() (toolgraph.HistoryRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return toolgraph.HistoryRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// LiveContext derives a context from records (for the node about to execute
// at execution-index `index`, pass Before(index)): for each distinct
// node-id among records with no error, the most-recent output is exposed
// under that id as a key.
func LiveContext(records []toolgraph.HistoryRecord) map[string]any {
	ctx := make(map[string]any, len(records))
	for _, r := range records {
		if r.Error != nil {
			continue
		}
		ctx[r.NodeID] = r.Output
	}
	return ctx
}
