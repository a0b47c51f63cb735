package memory

import (
	"context"
	"sync"

	"kindred/internal/domain"
)

// Feed is an in-memory domain.ChangeFeed. Publish fans an insert event out
// to every subscription scoped to the row's match.
type Feed struct {
	mu   sync.Mutex
	subs map[*feedSub]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*feedSub]struct{})}
}

func (f *Feed) Subscribe(_ context.Context, matchID domain.MatchID) (domain.Subscription, error) {
	sub := &feedSub{
		feed:    f,
		matchID: matchID,
		events:  make(chan domain.MessageEvent, 16),
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

// Publish delivers m to matching subscribers. Slow consumers drop events
// rather than block, like the real feed.
func (f *Feed) Publish(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if sub.matchID != m.MatchID {
			continue
		}
		select {
		case sub.events <- domain.MessageEvent{Message: m}:
		default:
		}
	}
}

type feedSub struct {
	feed    *Feed
	matchID domain.MatchID
	events  chan domain.MessageEvent

	closeOnce sync.Once
}

func (s *feedSub) Events() <-chan domain.MessageEvent { return s.events }

func (s *feedSub) Close() error {
	s.closeOnce.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.events)
	})
	return nil
}

var _ domain.ChangeFeed = (*Feed)(nil)
