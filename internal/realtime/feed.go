// Package realtime subscribes to the message change feed.
//
// The managed backend surfaces row inserts through Postgres LISTEN/NOTIFY:
// a trigger (installed by store.EnsureSchema) publishes each new messages
// row as JSON on MessagesChannel. Feed turns that stream into typed
// MessageEvents scoped to a single match.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"kindred/internal/domain"
)

// MessagesChannel is the NOTIFY channel carrying message inserts.
const MessagesChannel = "kindred_messages"

// Feed is the Postgres-backed domain.ChangeFeed.
type Feed struct {
	db  *bun.DB
	log zerolog.Logger
}

func NewFeed(db *bun.DB, log zerolog.Logger) *Feed {
	return &Feed{db: db, log: log.With().Str("component", "realtime").Logger()}
}

// Subscribe opens a listener scoped to matchID. Events from other matches
// are dropped before they reach the subscriber. The initial LISTEN is
// retried with exponential backoff; once established, pgdriver reconnects
// on its own.
func (f *Feed) Subscribe(ctx context.Context, matchID domain.MatchID) (domain.Subscription, error) {
	ln := pgdriver.NewListener(f.db)

	listen := func() error { return ln.Listen(ctx, MessagesChannel) }
	if err := backoff.Retry(listen, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		_ = ln.Close()
		return nil, err
	}

	sub := &subscription{
		ln:     ln,
		events: make(chan domain.MessageEvent, 16),
	}
	go sub.pump(matchID, f.log)
	return sub, nil
}

type subscription struct {
	ln     *pgdriver.Listener
	events chan domain.MessageEvent

	closeOnce sync.Once
}

func (s *subscription) Events() <-chan domain.MessageEvent { return s.events }

// Close stops the listener. The events channel is closed once the pump
// drains, so consumers ranging over it terminate cleanly.
func (s *subscription) Close() (err error) {
	s.closeOnce.Do(func() {
		err = s.ln.Close()
	})
	return err
}

// pump decodes notifications into events until the listener closes.
func (s *subscription) pump(matchID domain.MatchID, log zerolog.Logger) {
	defer close(s.events)

	for n := range s.ln.Channel() {
		m, err := decodeRow(n.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable feed payload")
			continue
		}
		if m.MatchID != matchID {
			continue
		}
		select {
		case s.events <- domain.MessageEvent{Message: m}:
		default:
			// A consumer that stopped draining does not get to wedge the
			// listener; the row is still in the store and reloads on the
			// next subscribe.
			log.Warn().Str("message", m.ID).Msg("subscriber backlogged, dropping event")
		}
	}
}

// feedRow mirrors row_to_json output for a messages row.
type feedRow struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	SenderID    string     `json:"sender_id"`
	ReceiverID  string     `json:"receiver_id"`
	Payload     string     `json:"payload"`
	ContentType string     `json:"content_type"`
	MediaURL    string     `json:"media_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

func decodeRow(payload string) (domain.Message, error) {
	var row feedRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:          row.ID,
		MatchID:     domain.MatchID(row.MatchID),
		SenderID:    domain.UserID(row.SenderID),
		ReceiverID:  domain.UserID(row.ReceiverID),
		Payload:     row.Payload,
		ContentType: domain.ContentType(row.ContentType),
		MediaURL:    row.MediaURL,
		CreatedAt:   row.CreatedAt,
		ReadAt:      row.ReadAt,
	}, nil
}

// Compile-time assertion that Feed implements domain.ChangeFeed.
var _ domain.ChangeFeed = (*Feed)(nil)
