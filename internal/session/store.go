// Package session owns the persisted conversation session record and the
// inactivity policy that decides when a thread has gone stale.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/store"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idRandomLength = 13
)

// Store reads and writes one session record per agent. Each operation
// holds mu across its whole read-modify-write, so a Touch never writes
// back a record that Adopt or Expire replaced meanwhile.
type Store struct {
	mu      sync.Mutex
	storage store.Storage
	clock   clock.Clock
	logger  *slog.Logger
	rand    io.Reader
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRandom overrides the entropy source used for session ids.
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.rand = r }
}

// NewStore creates a session store on top of storage.
func NewStore(storage store.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		clock:   clock.Real{},
		logger:  slog.Default(),
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID returns "session_<ms>_<13 base36 chars>".
func NewSessionID(now time.Time, r io.Reader) (string, error) {
	suffix, err := randomBase36(r, idRandomLength)
	if err != nil {
		return "", err
	}
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix, nil
}

func randomBase36(r io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	// 252 is the largest multiple of 36 below 256; rejecting bytes above it
	// keeps every character uniformly distributed.
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, idAlphabet[b%36])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// Load returns the agent's record, or nil when there is none. A record that
// does not parse is removed and reported as absent.
func (s *Store) Load(ctx context.Context, agentID string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, agentID)
}

func (s *Store) load(ctx context.Context, agentID string) (*domain.SessionRecord, error) {
	key := domain.SessionKey(agentID)
	raw, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	rec, perr := decode(raw)
	if perr != nil {
		s.logger.Info("invalid session data, discarding", "agent_id", agentID, "error", perr)
		if err := s.storage.RemoveItem(ctx, key); err != nil {
			return nil, fmt.Errorf("remove corrupt session: %w", err)
		}
		return nil, nil
	}
	return rec, nil
}

func decode(raw string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	if rec.SessionID == "" {
		return nil, fmt.Errorf("record has no sessionId")
	}
	return &rec, nil
}

func (s *Store) save(ctx context.Context, agentID string, rec *domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.SetItem(ctx, domain.SessionKey(agentID), string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Create persists a brand new record with a locally generated id.
func (s *Store) Create(ctx context.Context, agentID string) (*domain.SessionRecord, error) {
	now := s.clock.Now()
	id, err := NewSessionID(now, s.rand)
	if err != nil {
		return nil, err
	}
	rec := &domain.SessionRecord{SessionID: id, LastActivity: now.UnixMilli(), Created: now.UnixMilli()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, agentID, rec); err != nil {
		return nil, err
	}
	s.logger.Info("created new session", "agent_id", agentID)
	return rec, nil
}

// Adopt replaces the record with one carrying a server-issued id. Both
// timestamps are reset to now.
func (s *Store) Adopt(ctx context.Context, agentID, sessionID string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("adopt session: empty session id")
	}
	now := s.clock.Now().UnixMilli()
	rec := &domain.SessionRecord{SessionID: sessionID, LastActivity: now, Created: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, agentID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Touch bumps lastActivity. Without a record it does nothing.
func (s *Store) Touch(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(agentID)
	raw, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return nil
	}
	rec, perr := decode(raw)
	if perr != nil {
		s.logger.Warn("failed to update session activity", "agent_id", agentID, "error", perr)
		return nil
	}
	rec.LastActivity = s.clock.Now().UnixMilli()
	return s.save(ctx, agentID, rec)
}

// Expire removes the record unconditionally.
func (s *Store) Expire(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.RemoveItem(ctx, domain.SessionKey(agentID)); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	s.logger.Info("session manually expired", "agent_id", agentID)
	return nil
}

// Resume runs at widget start-up: it drops legacy ids and touches a valid
// record. It returns nil when no usable record remains; the caller decides
// whether to Create one or let the backend issue an id.
func (s *Store) Resume(ctx context.Context, agentID string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	if domain.IsLegacySessionID(rec.SessionID) {
		s.logger.Info("detected old session format, cleaning up", "agent_id", agentID)
		if err := s.storage.RemoveItem(ctx, domain.SessionKey(agentID)); err != nil {
			return nil, fmt.Errorf("remove legacy session: %w", err)
		}
		return nil, nil
	}

	rec.LastActivity = s.clock.Now().UnixMilli()
	if err := s.save(ctx, agentID, rec); err != nil {
		return nil, err
	}
	s.logger.Info("using existing session", "agent_id", agentID)
	return rec, nil
}

// Info describes the stored session relative to the thread timeout.
func (s *Store) Info(ctx context.Context, agentID string, timeout time.Duration) (*domain.SessionInfo, error) {
	rec, err := s.Load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	now := s.clock.Now()
	return &domain.SessionInfo{
		SessionID:            rec.SessionID,
		LastActivity:         rec.LastActivityTime(),
		Created:              rec.CreatedTime(),
		SinceActivity:        now.Sub(rec.LastActivityTime()),
		ThreadTimedOut:       IsExpired(rec, now.UnixMilli(), timeout.Milliseconds()),
		ThreadTimeoutMinutes: int(timeout / time.Minute),
	}, nil
}

// Expired loads the record and applies IsExpired. A missing or unreadable
// record is never expired.
func (s *Store) Expired(ctx context.Context, agentID string, timeout time.Duration) bool {
	rec, err := s.Load(ctx, agentID)
	if err != nil {
		s.logger.Warn("error checking thread timeout", "agent_id", agentID, "error", err)
		return false
	}
	return IsExpired(rec, s.clock.Now().UnixMilli(), timeout.Milliseconds())
}
