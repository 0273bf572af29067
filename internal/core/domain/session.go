package domain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type SessionState string

const (
	StateIdle          SessionState = "idle"
	StatePreviewing    SessionState = "previewing"
	StateDetecting     SessionState = "detecting"
	StateShowingResult SessionState = "showing_result"
	StateError         SessionState = "error"
)

type SessionEvent string

const (
	EventSelect        SessionEvent = "select"
	EventPreviewFailed SessionEvent = "preview_failed"
	EventDetect        SessionEvent = "detect"
	EventSucceeded     SessionEvent = "succeeded"
	EventFailed        SessionEvent = "failed"
	EventClear         SessionEvent = "clear"
)

// DetectionFailedMessage is shown to the user whenever the latest detection fails.
const DetectionFailedMessage = "Error detecting disease. Please try again."

var transitions = map[SessionState]map[SessionEvent]SessionState{
	StateIdle: {
		EventSelect: StatePreviewing,
		EventClear:  StateIdle,
	},
	StatePreviewing: {
		EventSelect:        StatePreviewing,
		EventPreviewFailed: StateError,
		EventDetect:        StateDetecting,
		EventClear:         StateIdle,
	},
	StateDetecting: {
		EventSelect:    StatePreviewing,
		EventDetect:    StateDetecting,
		EventSucceeded: StateShowingResult,
		EventFailed:    StatePreviewing,
		EventClear:     StateIdle,
	},
	StateShowingResult: {
		EventSelect: StatePreviewing,
		EventDetect: StateDetecting,
		EventClear:  StateIdle,
	},
	StateError: {
		EventSelect: StatePreviewing,
		EventDetect: StateDetecting,
		EventClear:  StateIdle,
	},
}

// NextState looks up the transition table. The state is unchanged on error.
func NextState(from SessionState, event SessionEvent) (SessionState, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, event, from)
}

// DetectTicket identifies one detect call. Only the ticket holding the
// latest sequence number may change the session when its response arrives.
type DetectTicket struct {
	Seq   uint64
	Image SelectedImage
}

type ImageInfo struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type SessionSnapshot struct {
	ID           string           `json:"id"`
	State        SessionState     `json:"state"`
	Sequence     uint64           `json:"sequence"`
	Image        *ImageInfo       `json:"image,omitempty"`
	PreviewURL   string           `json:"preview_url,omitempty"`
	PreviewReady bool             `json:"preview_ready"`
	PreviewError string           `json:"preview_error,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
	Result       *DetectionResult `json:"result,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Session is the per-page-view view-model: it owns the current selection and
// the current result. All methods are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	state       SessionState
	image       *SelectedImage
	generation  uint64
	previewURL  string
	previewErr  error
	previewDone chan struct{}
	seq         uint64
	result      *DetectionResult
	lastError   string
	touchedAt   time.Time
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		state:     StateIdle,
		touchedAt: now,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Select replaces the active selection and returns the generation the
// preview decode must report back with. In-flight detections become stale;
// the current result stays until a new one supersedes it or Clear runs.
func (s *Session) Select(img SelectedImage, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(EventSelect); err != nil {
		return 0, err
	}
	s.releasePreview()
	s.generation++
	s.seq++
	selected := img
	s.image = &selected
	s.previewURL = ""
	s.previewErr = nil
	s.previewDone = make(chan struct{})
	s.lastError = ""
	s.touchedAt = now
	return s.generation, nil
}

// ApplyPreview stores a decoded preview. It reports false when the
// selection changed since the decode started.
func (s *Session) ApplyPreview(generation uint64, dataURL string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.image == nil {
		return false
	}
	if err != nil {
		s.previewErr = err
		if s.state == StatePreviewing {
			_ = s.apply(EventPreviewFailed)
		}
	} else {
		s.previewURL = dataURL
	}
	s.releasePreview()
	return true
}

// AwaitPreview blocks until the preview of the current selection is decoded.
func (s *Session) AwaitPreview(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.image == nil {
		s.mu.Unlock()
		return "", WrapError(ErrNoImageSelected, "await preview", fmt.Errorf("session %s", s.ID))
	}
	generation := s.generation
	done := s.previewDone
	s.mu.Unlock()

	if done != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-done:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return "", WrapError(ErrStaleResponse, "await preview", fmt.Errorf("selection replaced"))
	}
	if s.previewErr != nil {
		return "", s.previewErr
	}
	return s.previewURL, nil
}

// BeginDetect moves the session to Detecting and hands out a new ticket.
func (s *Session) BeginDetect(now time.Time) (DetectTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return DetectTicket{}, WrapError(ErrNoImageSelected, "detect", fmt.Errorf("session %s has no active selection", s.ID))
	}
	if err := s.apply(EventDetect); err != nil {
		return DetectTicket{}, err
	}
	s.seq++
	s.lastError = ""
	s.touchedAt = now
	return DetectTicket{Seq: s.seq, Image: *s.image}, nil
}

// CompleteDetect makes result the current result if the ticket is still the latest.
func (s *Session) CompleteDetect(ticket DetectTicket, result DetectionResult, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(ticket, "complete detect"); err != nil {
		return err
	}
	if err := s.apply(EventSucceeded); err != nil {
		return err
	}
	s.result = &result
	s.touchedAt = now
	return nil
}

// FailDetect reverts the session to Previewing and records the user-facing
// message. The previous result is left in place.
func (s *Session) FailDetect(ticket DetectTicket, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(ticket, "fail detect"); err != nil {
		return err
	}
	if err := s.apply(EventFailed); err != nil {
		return err
	}
	s.lastError = DetectionFailedMessage
	s.touchedAt = now
	return nil
}

// Clear drops the selection, the preview and the current result.
func (s *Session) Clear(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.apply(EventClear)
	s.releasePreview()
	s.generation++
	s.seq++
	s.image = nil
	s.previewURL = ""
	s.previewErr = nil
	s.result = nil
	s.lastError = ""
	s.touchedAt = now
}

func (s *Session) Result() (DetectionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return DetectionResult{}, false
	}
	return *s.result, true
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:           s.ID,
		State:        s.state,
		Sequence:     s.seq,
		PreviewURL:   s.previewURL,
		PreviewReady: s.previewURL != "",
		LastError:    s.lastError,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.touchedAt,
	}
	if s.image != nil {
		snap.Image = &ImageInfo{
			Filename: s.image.Filename,
			MimeType: s.image.MimeType,
			Size:     s.image.Size,
		}
	}
	if s.previewErr != nil {
		snap.PreviewError = s.previewErr.Error()
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	return snap
}

func (s *Session) apply(event SessionEvent) error {
	to, err := NextState(s.state, event)
	if err != nil {
		return err
	}
	s.state = to
	return nil
}

func (s *Session) checkTicket(ticket DetectTicket, operation string) error {
	if ticket.Seq != s.seq {
		return WrapError(ErrStaleResponse, operation, fmt.Errorf("sequence %d superseded by %d", ticket.Seq, s.seq))
	}
	return nil
}

func (s *Session) releasePreview() {
	if s.previewDone != nil {
		close(s.previewDone)
		s.previewDone = nil
	}
}
