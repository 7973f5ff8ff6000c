package session

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// EventSink receives ambient session events (timer ticks, expiry) for
// delivery to the client. Implemented by the websocket hub.
type EventSink interface {
	SessionEvent(code string, eventType string, data interface{})
}

// Manager owns the session lifecycle around the state machine: the
// Idle/Loading phases, the registry of live sessions, the reentrancy
// guard on starts, and the per-session countdown goroutine.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	stops    map[string]chan struct{}
	pending  bool
	attempt  uint64
	events   EventSink
}

func NewManager(events EventSink) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		stops:    make(map[string]chan struct{}),
		events:   events,
	}
}

// Begin marks a generation call as outstanding and hands back an attempt
// number. A second Begin while one is outstanding is refused, and a
// result installed under a superseded attempt number is discarded.
func (m *Manager) Begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending {
		return 0, ErrStartPending
	}
	m.pending = true
	m.attempt++
	return m.attempt, nil
}

// Abort clears the pending flag after a failed or abandoned generation
// call. Stale attempt numbers are ignored.
func (m *Manager) Abort(attempt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt == m.attempt {
		m.pending = false
	}
}

// Install creates the session for a completed generation call. If the
// attempt has been superseded (the caller reset or started again) the
// late result is discarded with ErrStaleAttempt.
func (m *Manager) Install(attempt uint64, mode, gradeLevel, difficulty string, questions []Question, timeLimitSeconds int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if attempt != m.attempt {
		return nil, ErrStaleAttempt
	}
	m.pending = false

	if len(questions) == 0 {
		return nil, ErrEmptyResult
	}
	return m.install(mode, gradeLevel, difficulty, questions, timeLimitSeconds), nil
}

// StartManual validates a user-supplied question list and creates a
// session from it. Nothing is created when any entry is malformed.
func (m *Manager) StartManual(gradeLevel, difficulty string, questions []Question, timeLimitSeconds int) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyResult
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending {
		return nil, ErrStartPending
	}
	return m.install("manual", gradeLevel, difficulty, questions, timeLimitSeconds), nil
}

// install registers a fresh session and starts its countdown. Caller
// holds m.mu.
func (m *Manager) install(mode, gradeLevel, difficulty string, questions []Question, timeLimitSeconds int) *Session {
	code := generateSessionCode()
	for m.sessions[code] != nil {
		code = generateSessionCode()
	}

	s := newSession(code, mode, gradeLevel, difficulty, questions, timeLimitSeconds)
	m.sessions[code] = s

	stop := make(chan struct{})
	m.stops[code] = stop
	go m.runCountdown(s, stop)

	log.Printf("Session %s created: mode=%s questions=%d time_limit=%ds", code, mode, len(questions), timeLimitSeconds)
	return s
}

func (m *Manager) Get(code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove discards a session unconditionally and stops its countdown.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(code)
}

func (m *Manager) remove(code string) {
	if stop, ok := m.stops[code]; ok {
		close(stop)
		delete(m.stops, code)
	}
	delete(m.sessions, code)
}

// Retry re-seeds a fresh session from the incorrect answers of a
// completed one. The completed session is only replaced when the retry
// is actually possible.
func (m *Manager) Retry(code string, timeLimitSeconds int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if old.Status() != StatusCompleted {
		return nil, ErrSessionActive
	}

	incorrect := old.IncorrectQuestions()
	if len(incorrect) == 0 {
		return nil, ErrNoIncorrectAnswers
	}

	old.mu.Lock()
	mode, gradeLevel, difficulty := old.mode, old.gradeLevel, old.difficulty
	old.mu.Unlock()

	m.remove(code)
	return m.install(mode, gradeLevel, difficulty, incorrect, timeLimitSeconds), nil
}

// Close stops every countdown goroutine. Used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code := range m.stops {
		m.remove(code)
	}
}

// runCountdown fires the ambient once-per-second tick for one session
// and pushes timer events to the client. It exits when the session
// completes by any path or is removed.
func (m *Manager) runCountdown(s *Session, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.Status() != StatusInProgress {
				return
			}
			remaining, expired := s.Tick()
			if m.events != nil {
				m.events.SessionEvent(s.Code(), "timer", map[string]interface{}{
					"time_remaining_seconds": remaining,
				})
			}
			if expired {
				log.Printf("Session %s timed out", s.Code())
				if m.events != nil {
					m.events.SessionEvent(s.Code(), "time_up", s.Summary())
				}
				return
			}
		}
	}
}

const sessionCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateSessionCode() string {
	code := make([]byte, 12)
	for i := range code {
		code[i] = sessionCodeCharset[rand.Intn(len(sessionCodeCharset))]
	}
	return string(code)
}
