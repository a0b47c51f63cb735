package domain

import (
	"context"
	"time"
)

// KeyStore holds the local user's private key material in secure on-device
// storage. Derivation is deterministic, so a miss only means the key has not
// been materialised on this device yet.
type KeyStore interface {
	// EnsureKeys returns the public key for userID, deriving and persisting
	// the pair first if this device has none. Idempotent.
	EnsureKeys(userID UserID) (X25519Public, error)

	// PrivateKey returns the stored private key. ok is false when no key has
	// ever been derived here; callers fall back to plaintext, it is not an
	// error.
	PrivateKey(userID UserID) (priv X25519Private, ok bool, err error)

	// HasKeys reports key presence without deriving anything.
	HasKeys(userID UserID) (bool, error)

	// Reset drops any per-process caches. Called on sign-out so a stale
	// identity's material is never served to the next session.
	Reset()
}

// KeyDirectory maps user id to published public key via the shared profile
// record.
type KeyDirectory interface {
	// Publish upserts the public key for userID. Idempotent; a divergent
	// stored value is overwritten because local deterministic derivation is
	// authoritative.
	Publish(ctx context.Context, userID UserID, pub X25519Public) error

	// Lookup returns the counterparty's published key. ok=false means none
	// is published and the sender must fall back to plaintext.
	Lookup(ctx context.Context, userID UserID) (pub X25519Public, ok bool, err error)
}

// ProfileStore is read/write access to the shared profiles table.
type ProfileStore interface {
	Get(ctx context.Context, id UserID) (Profile, bool, error)
	UpsertPublicKey(ctx context.Context, id UserID, pubB64 string) error
}

// MatchStore reads match rows.
type MatchStore interface {
	Get(ctx context.Context, id MatchID) (Match, bool, error)
}

// MessageStore is read/write access to the messages table.
type MessageStore interface {
	Insert(ctx context.Context, m Message) error
	Get(ctx context.Context, id string) (Message, bool, error)
	ListByMatch(ctx context.Context, matchID MatchID) ([]Message, error)

	// MarkRead sets read_at once; rows already read are left untouched.
	MarkRead(ctx context.Context, id string, at time.Time) error

	// Delete hard-deletes a message (the user-facing delete feature).
	Delete(ctx context.Context, id string) error

	CountByMatch(ctx context.Context, matchID MatchID) (int, error)
}

// ChangeFeed delivers message-insert events in near-real-time.
type ChangeFeed interface {
	// Subscribe starts a feed scoped to one match. The subscription must be
	// closed to release the underlying listener.
	Subscribe(ctx context.Context, matchID MatchID) (Subscription, error)
}

// Subscription is a live change-feed stream. Events is closed after Close.
type Subscription interface {
	Events() <-chan MessageEvent
	Close() error
}

// Validator screens outbound text before it is encrypted or persisted.
type Validator interface {
	Validate(ctx context.Context, text string) (ValidationResult, error)
}

// Notifier dispatches a best-effort push notification. Callers treat every
// error as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, recipient UserID, senderName, preview string, matchID MatchID) error
}

// EncryptionService readies a user's key material: local derivation plus
// directory publication, healing divergence.
type EncryptionService interface {
	EnsureReady(ctx context.Context, userID UserID) (X25519Public, error)
}

// MessageService is the send/receive pipeline exposed to the UI layer.
type MessageService interface {
	Send(ctx context.Context, matchID MatchID, senderID, receiverID UserID, text string) (Message, error)
	SendMedia(ctx context.Context, matchID MatchID, senderID, receiverID UserID, ct ContentType, mediaURL string) (Message, error)
	SubscribeConversation(ctx context.Context, matchID MatchID, userID UserID, onMessage func(Message)) (*Stream, error)
	Delete(ctx context.Context, userID UserID, messageID string) error
}
