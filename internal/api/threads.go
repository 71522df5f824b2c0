package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type thread struct {
	agentID  string
	lastSeen time.Time
	turns    int
}

// threadRegistry tracks conversation threads by session id.
type threadRegistry struct {
	mu       sync.Mutex
	threads  map[string]*thread
	messages map[string]string // message id -> session id
}

func newThreadRegistry() *threadRegistry {
	return &threadRegistry{
		threads:  make(map[string]*thread),
		messages: make(map[string]string),
	}
}

// resolution describes which thread a chat turn landed on.
type resolution struct {
	sessionID string
	rotated   bool
	turn      int
}

func newServerSessionID() string {
	return "srv_" + uuid.NewString()
}

// resolve picks the thread for a chat turn. Missing ids start a new thread,
// idle or foreign threads are rotated and unknown client ids are adopted
// as-is.
func (tr *threadRegistry) resolve(agentID, requested string, now time.Time, idle time.Duration) resolution {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var res resolution
	t, ok := tr.threads[requested]
	switch {
	case requested == "" || requested == "new":
		res.sessionID = newServerSessionID()
		t = &thread{agentID: agentID}
	case ok && (t.agentID != agentID || now.Sub(t.lastSeen) >= idle):
		res.sessionID = newServerSessionID()
		res.rotated = true
		t = &thread{agentID: agentID}
	case ok:
		res.sessionID = requested
	default:
		res.sessionID = requested
		t = &thread{agentID: agentID}
	}

	t.turns++
	t.lastSeen = now
	tr.threads[res.sessionID] = t
	res.turn = t.turns
	return res
}

func (tr *threadRegistry) addMessage(messageID, sessionID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.messages[messageID] = sessionID
}

// sessionFor returns the session a message was issued in.
func (tr *threadRegistry) sessionFor(messageID string) (string, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	s, ok := tr.messages[messageID]
	return s, ok
}
