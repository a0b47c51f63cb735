package domain

import "time"

// UserID is the stable, opaque account identifier owned by the auth layer.
// It never changes for the lifetime of an account, which is what makes
// deterministic key derivation possible.
type UserID string

// MatchID identifies a match (a mutual-like pairing) between two users.
type MatchID string

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether no key material is set.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair holds a user's asymmetric key material. The private half lives
// only in the local keystore and is never transmitted.
type KeyPair struct {
	Public  X25519Public
	Private X25519Private
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchUnmatched MatchStatus = "unmatched"
	MatchBlocked   MatchStatus = "blocked"
)

// ContentType classifies a message body.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVoice ContentType = "voice"
)

// Placeholder payloads stored for media messages. The real content lives in
// object storage at MediaURL and is not handled by this layer.
const (
	PhotoPlaceholder = "[Photo]"
	VoicePlaceholder = "[Voice Message]"
)

// Profile is the shared per-user record. EncryptionPublicKey is the
// base64-encoded published X25519 public key, empty until the user's
// device has published one.
type Profile struct {
	ID                  UserID
	DisplayName         string
	EncryptionPublicKey string
	CreatedAt           time.Time
}

// Match pairs two users. Messages may only flow while Status is active.
type Match struct {
	ID        MatchID
	UserA     UserID
	UserB     UserID
	Status    MatchStatus
	CreatedAt time.Time
}

// Other returns the participant that is not me.
func (m Match) Other(me UserID) UserID {
	if m.UserA == me {
		return m.UserB
	}
	return m.UserA
}

// Has reports whether u participates in the match.
func (m Match) Has(u UserID) bool { return m.UserA == u || m.UserB == u }

// Message is the persisted message row. Payload is opaque at rest: for text
// messages it is either a sealed envelope (colon-delimited) or raw legacy
// plaintext; for media it is a placeholder. ReadAt is set once and never
// cleared.
type Message struct {
	ID          string
	MatchID     MatchID
	SenderID    UserID
	ReceiverID  UserID
	Payload     string
	ContentType ContentType
	MediaURL    string
	CreatedAt   time.Time
	ReadAt      *time.Time
}

// MessageEvent is one change-feed delivery: an insert on the messages table.
type MessageEvent struct {
	Message Message
}

// ValidationResult is the moderation verdict for a candidate message body.
type ValidationResult struct {
	OK     bool
	Reason string
}
