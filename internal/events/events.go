// Package events provides the JSONL lifecycle event log.
//
// Events are appended to <state-dir>/events.jsonl as the durable audit
// trail of dispatch activity. Logging is best-effort: a failed append
// never blocks or fails the dispatch path.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"foreman/internal/constants"
)

// Event represents one lifecycle event.
type Event struct {
	Timestamp string                 `json:"ts"`
	Type      string                 `json:"type"`
	Actor     string                 `json:"actor,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Lifecycle event types.
const (
	TypeDispatch        = "dispatch"
	TypeProjectProgress = "project_progress"
	TypeProjectComplete = "project_complete"
	TypeProjectStuck    = "project_stuck"
	TypeReclaim         = "reclaim"
	TypePrune           = "prune"
)

// Log appends events to the event file under a state directory.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates an event log rooted at stateDir.
func NewLog(stateDir string) *Log {
	return &Log{path: filepath.Join(stateDir, constants.EventsFile)}
}

// Append writes one event. Returns the write error for callers that want
// it, but callers on the dispatch path ignore it.
func (l *Log) Append(eventType, actor string, payload map[string]interface{}) error {
	event := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      eventType,
		Actor:     actor,
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating events dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G302: event log is non-sensitive operational data
	if err != nil {
		return fmt.Errorf("opening events log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// Tail returns up to n most recent events.
func (l *Log) Tail(n int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading events log: %w", err)
	}

	var all []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				continue // skip malformed lines
			}
			all = append(all, e)
		}
	}

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
