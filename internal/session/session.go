package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a message with a ULID and the current time.
func NewMessage(role Role, content string) Message {
	now := time.Now()
	return Message{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

// Session is the single document context shared by every request: the
// namespace of the last successful ingestion and the transcript since then.
type Session struct {
	mu         sync.RWMutex
	namespace  string
	transcript []Message
}

func New() *Session {
	return &Session{}
}

// Namespace returns the active isolation key, if any document was ingested.
func (s *Session) Namespace() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespace, s.namespace != ""
}

// Transcript returns a copy of the messages in append order.
func (s *Session) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

func (s *Session) Append(role Role, content string) Message {
	m := NewMessage(role, content)
	s.mu.Lock()
	s.transcript = append(s.transcript, m)
	s.mu.Unlock()
	return m
}

// AppendFor appends msgs only while namespace is still the active key.
// A query that started before a newer ingestion finished is dropped rather
// than written into the new document's transcript.
func (s *Session) AppendFor(namespace string, msgs ...Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if namespace == "" || s.namespace != namespace {
		return false
	}
	s.transcript = append(s.transcript, msgs...)
	return true
}

// Reset installs a new active key and replaces the transcript with seed.
func (s *Session) Reset(namespace string, seed ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespace = namespace
	s.transcript = append([]Message(nil), seed...)
}
