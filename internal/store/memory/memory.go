// Package memory holds in-memory implementations of the domain storage and
// feed interfaces. They back the test suite and keep the pipeline testable
// without a live Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kindred/internal/domain"
)

// Profiles is an in-memory domain.ProfileStore.
type Profiles struct {
	mu   sync.Mutex
	rows map[domain.UserID]domain.Profile
}

func NewProfiles() *Profiles {
	return &Profiles{rows: make(map[domain.UserID]domain.Profile)}
}

// Put seeds a profile row.
func (p *Profiles) Put(prof domain.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[prof.ID] = prof
}

func (p *Profiles) Get(_ context.Context, id domain.UserID) (domain.Profile, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.rows[id]
	return prof, ok, nil
}

func (p *Profiles) UpsertPublicKey(_ context.Context, id domain.UserID, pubB64 string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof := p.rows[id]
	prof.ID = id
	prof.EncryptionPublicKey = pubB64
	p.rows[id] = prof
	return nil
}

// Matches is an in-memory domain.MatchStore.
type Matches struct {
	mu   sync.Mutex
	rows map[domain.MatchID]domain.Match
}

func NewMatches() *Matches {
	return &Matches{rows: make(map[domain.MatchID]domain.Match)}
}

func (m *Matches) Put(match domain.Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[match.ID] = match
}

func (m *Matches) Get(_ context.Context, id domain.MatchID) (domain.Match, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.rows[id]
	return match, ok, nil
}

// Messages is an in-memory domain.MessageStore. When a Feed is attached,
// every insert is echoed to subscribers, mimicking the backend's change
// feed.
type Messages struct {
	mu   sync.Mutex
	rows map[string]domain.Message
	feed *Feed

	failInsert error // when set, Insert returns it
}

func NewMessages() *Messages {
	return &Messages{rows: make(map[string]domain.Message)}
}

// AttachFeed echoes future inserts to the feed's subscribers.
func (s *Messages) AttachFeed(f *Feed) { s.feed = f }

// FailInserts makes every subsequent Insert return err.
func (s *Messages) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsert = err
}

func (s *Messages) Insert(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	if s.failInsert != nil {
		err := s.failInsert
		s.mu.Unlock()
		return err
	}
	s.rows[m.ID] = m
	feed := s.feed
	s.mu.Unlock()

	if feed != nil {
		feed.Publish(m)
	}
	return nil
}

func (s *Messages) Get(_ context.Context, id string) (domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	return m, ok, nil
}

func (s *Messages) ListByMatch(_ context.Context, matchID domain.MatchID) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.rows {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Messages) MarkRead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok || m.ReadAt != nil {
		return nil
	}
	m.ReadAt = &at
	s.rows[id] = m
	return nil
}

func (s *Messages) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *Messages) CountByMatch(_ context.Context, matchID domain.MatchID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.rows {
		if m.MatchID == matchID {
			n++
		}
	}
	return n, nil
}

// Compile-time assertions.
var (
	_ domain.ProfileStore = (*Profiles)(nil)
	_ domain.MatchStore   = (*Matches)(nil)
	_ domain.MessageStore = (*Messages)(nil)
)
