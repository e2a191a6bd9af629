package history

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/logger"
)

// Outcome reports what a save actually did. Persistence failures never roll
// back in-memory state; callers can surface a non-blocking warning when
// Persisted is false.
type Outcome struct {
	Saved     bool
	Persisted bool
	Err       error
}

// Store keeps the saved conversations, most recent first, and mirrors every
// change to a JSON file. Writes are best effort: lossy on attachment
// payloads and never fatal.
type Store struct {
	mu       sync.Mutex
	path     string
	sessions []models.ChatSession
	log      *logger.Logger
	now      func() time.Time
}

// NewStore opens the history file at path, loading any existing sessions.
// A missing file yields an empty history; a corrupt one is logged and
// treated as empty.
func NewStore(path string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.GetGlobal()
	}
	s := &Store{path: path, log: log, now: time.Now}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.LogError(err, "Failed to read chat history", "path", s.path)
		}
		return
	}
	var sessions []models.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.log.LogError(err, "Corrupt chat history, starting empty", "path", s.path)
		return
	}
	s.sessions = sessions
}

// SaveSession records the conversation. A conversation with no user message
// is a no-op. When a session with the same first-message id already exists
// it is replaced in place, keeping its original CreatedAt; otherwise the new
// session is prepended.
func (s *Store) SaveSession(messages []models.Message) Outcome {
	if len(messages) == 0 {
		return Outcome{}
	}

	var firstUser *models.Message
	for i := range messages {
		if messages[i].Role == models.RoleUser {
			firstUser = &messages[i]
			break
		}
	}
	if firstUser == nil {
		return Outcome{}
	}

	var firstAssistant *models.Message
	for i := range messages {
		if messages[i].Role == models.RoleAssistant {
			firstAssistant = &messages[i]
			break
		}
	}

	now := s.now()
	preview := "No response yet"
	if firstAssistant != nil {
		preview = truncate(firstAssistant.Content, 100)
	}

	session := models.ChatSession{
		ID:           messages[0].NumericID(),
		Title:        truncate(firstUser.Content, 50),
		Preview:      preview,
		Date:         relativeDate(now, now),
		Time:         now.Format("3:04 PM"),
		MessageCount: len(messages),
		Messages:     append([]models.Message(nil), messages...),
		CreatedAt:    now,
	}

	s.mu.Lock()
	replaced := false
	for i, existing := range s.sessions {
		if existing.ID == session.ID {
			session.CreatedAt = existing.CreatedAt
			session.Date = relativeDate(s.now(), existing.CreatedAt)
			s.sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		s.sessions = append([]models.ChatSession{session}, s.sessions...)
	}
	err := s.persist()
	s.mu.Unlock()

	if err != nil {
		s.log.LogError(err, "Failed to persist chat history", "path", s.path)
		return Outcome{Saved: true, Err: err}
	}
	return Outcome{Saved: true, Persisted: true}
}

// LoadSession returns the messages of the session with the given id, or nil
// when no such session exists.
func (s *Store) LoadSession(id int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == id {
			out := make([]models.Message, len(session.Messages))
			copy(out, session.Messages)
			return out
		}
	}
	return nil
}

// Sessions returns a copy of the saved sessions, most recent first.
func (s *Store) Sessions() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// RefreshDates recomputes the relative date labels of every session.
func (s *Store) RefreshDates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for i := range s.sessions {
		s.sessions[i].Date = relativeDate(now, s.sessions[i].CreatedAt)
	}
}

// ClearHistory empties the session list and removes the backing file.
// Irreversible.
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.LogError(err, "Failed to remove chat history file", "path", s.path)
		return err
	}
	return nil
}

// persist writes the lightweight form of every session: attachment payloads
// stripped, preview handles dropped. Caller holds the lock.
func (s *Store) persist() error {
	light := make([]models.ChatSession, len(s.sessions))
	for i, session := range s.sessions {
		light[i] = session.Light()
	}
	data, err := json.Marshal(light)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// truncate cuts at rune boundaries so multi-byte input stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// relativeDate labels a creation instant the way a sidebar would: Today,
// Yesterday, "N days ago", "1 week ago", then the plain date.
func relativeDate(now, created time.Time) string {
	diff := now.Sub(created)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))
	if days < 1 {
		days = 1
	}
	switch {
	case days == 1:
		return "Today"
	case days == 2:
		return "Yesterday"
	case days <= 7:
		return strconv.Itoa(days-1) + " days ago"
	case days <= 14:
		return "1 week ago"
	default:
		return created.Format("1/2/2006")
	}
}
