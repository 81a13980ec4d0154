package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xhujustin/billiards-analytics-v1.5/internal/models"
)

// EventLog is the append-only event timeline of one session. Every append is
// flushed to stable storage before returning, so a crash after Append never
// loses that event and a crash during Append never leaves a torn record
// visible to readers (a partial trailing line is skipped on replay).
type EventLog struct {
	f *os.File
}

// OpenEventLog creates (or truncates) the events file for a new session.
func OpenEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &EventLog{f: f}, nil
}

// Append serializes the event as one JSON line and fsyncs it.
func (l *EventLog) Append(e models.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync event log: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (l *EventLog) Close() error {
	return l.f.Close()
}

// ReadEventLog replays all events in file order. Malformed lines are skipped
// individually; they never fail the whole read.
func ReadEventLog(path string) ([]models.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []models.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	return events, nil
}
