package bot

import "sync"

// Step is the customer's position in the ordering flow. A missing
// conversation means idle.
type Step int

const (
	StepSelectingProducts Step = iota
	StepAwaitingAddress
	StepAwaitingComment
)

// Conversation is the per-chat ordering state. It lives only in memory;
// a restart drops every in-progress order.
type Conversation struct {
	Step    Step
	Cart    *Cart
	Address string
}

// ConversationStore keeps per-chat conversation state keyed by telegram id.
type ConversationStore interface {
	Get(chatID int64) (*Conversation, bool)
	Set(chatID int64, conv *Conversation)
	Delete(chatID int64)
}

type memoryStore struct {
	mu     sync.Mutex
	byChat map[int64]*Conversation
}

// NewMemoryStore returns a mutex-guarded in-memory ConversationStore.
func NewMemoryStore() ConversationStore {
	return &memoryStore{byChat: make(map[int64]*Conversation)}
}

func (s *memoryStore) Get(chatID int64) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byChat[chatID]
	return conv, ok
}

func (s *memoryStore) Set(chatID int64, conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChat[chatID] = conv
}

func (s *memoryStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byChat, chatID)
}
