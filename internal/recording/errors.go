package recording

import "errors"

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNoActiveRecording is returned by Stop when no session is active.
	ErrNoActiveRecording = errors.New("no active recording")
	// ErrNotFound is returned by metadata queries for an unknown game ID.
	ErrNotFound = errors.New("recording not found")
)

// SinkOpenError reports that the video sink could not be initialized for the
// requested parameters. The session directory may remain on disk and is
// garbage-collectable; no session is left active.
type SinkOpenError struct {
	Path string
	Err  error
}

func (e *SinkOpenError) Error() string {
	return "open video sink " + e.Path + ": " + e.Err.Error()
}

func (e *SinkOpenError) Unwrap() error { return e.Err }
