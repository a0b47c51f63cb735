package domain

import (
	"sort"
	"sync"
)

// Conversation is the in-memory state of one match's message history, as
// rendered by the UI. It deduplicates by message id so the optimistic local
// append and the server-echoed feed event for the same row collapse into a
// single entry, and keeps messages ordered by CreatedAt ascending.
type Conversation struct {
	mu      sync.Mutex
	matchID MatchID
	byID    map[string]struct{}
	msgs    []Message
}

// NewConversation returns an empty conversation for matchID.
func NewConversation(matchID MatchID) *Conversation {
	return &Conversation{
		matchID: matchID,
		byID:    make(map[string]struct{}),
	}
}

// MatchID returns the match this conversation belongs to.
func (c *Conversation) MatchID() MatchID { return c.matchID }

// Add merges m into the conversation. It returns false when a message with
// the same id is already present, in which case state is unchanged.
func (c *Conversation) Add(m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.byID[m.ID]; dup {
		return false
	}
	c.byID[m.ID] = struct{}{}

	// Insert keeping CreatedAt order. Appends dominate in practice.
	i := sort.Search(len(c.msgs), func(i int) bool {
		return c.msgs[i].CreatedAt.After(m.CreatedAt)
	})
	c.msgs = append(c.msgs, Message{})
	copy(c.msgs[i+1:], c.msgs[i:])
	c.msgs[i] = m
	return true
}

// Remove drops the message with the given id, if present.
func (c *Conversation) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	for i := range c.msgs {
		if c.msgs[i].ID == id {
			c.msgs = append(c.msgs[:i], c.msgs[i+1:]...)
			break
		}
	}
}

// Len returns the number of messages currently held.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// Messages returns a snapshot copy in CreatedAt ascending order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Stream is a live conversation handle: the merged state plus the feed
// subscription backing it. Close always releases the subscription, so
// re-subscribing never leaks the previous channel.
type Stream struct {
	conv *Conversation
	sub  Subscription

	closeOnce sync.Once
	done      chan struct{}
}

// NewStream wraps conv and sub into a closable handle.
func NewStream(conv *Conversation, sub Subscription) *Stream {
	return &Stream{conv: conv, sub: sub, done: make(chan struct{})}
}

// Conversation returns the merged conversation state.
func (s *Stream) Conversation() *Conversation { return s.conv }

// Done is closed when the stream has been shut down.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close tears the stream down. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.sub.Close()
	})
	return err
}
