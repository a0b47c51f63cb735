package store

import (
	"time"

	"github.com/uptrace/bun"

	"kindred/internal/domain"
)

// Row types mirror the managed backend's schema. Conversion to and from the
// domain types is kept here so the rest of the app never sees bun tags.

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID                  string    `bun:"id,pk"`
	DisplayName         string    `bun:"display_name,notnull"`
	EncryptionPublicKey string    `bun:"encryption_public_key,nullzero"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r profileRow) toDomain() domain.Profile {
	return domain.Profile{
		ID:                  domain.UserID(r.ID),
		DisplayName:         r.DisplayName,
		EncryptionPublicKey: r.EncryptionPublicKey,
		CreatedAt:           r.CreatedAt,
	}
}

type matchRow struct {
	bun.BaseModel `bun:"table:matches,alias:mt"`

	ID        string    `bun:"id,pk"`
	UserA     string    `bun:"user_a,notnull"`
	UserB     string    `bun:"user_b,notnull"`
	Status    string    `bun:"status,notnull,default:'active'"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r matchRow) toDomain() domain.Match {
	return domain.Match{
		ID:        domain.MatchID(r.ID),
		UserA:     domain.UserID(r.UserA),
		UserB:     domain.UserID(r.UserB),
		Status:    domain.MatchStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID          string     `bun:"id,pk"`
	MatchID     string     `bun:"match_id,notnull"`
	SenderID    string     `bun:"sender_id,notnull"`
	ReceiverID  string     `bun:"receiver_id,notnull"`
	Payload     string     `bun:"payload,notnull"`
	ContentType string     `bun:"content_type,notnull,default:'text'"`
	MediaURL    string     `bun:"media_url,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ReadAt      *time.Time `bun:"read_at"`
}

func messageToRow(m domain.Message) messageRow {
	return messageRow{
		ID:          m.ID,
		MatchID:     string(m.MatchID),
		SenderID:    string(m.SenderID),
		ReceiverID:  string(m.ReceiverID),
		Payload:     m.Payload,
		ContentType: string(m.ContentType),
		MediaURL:    m.MediaURL,
		CreatedAt:   m.CreatedAt,
		ReadAt:      m.ReadAt,
	}
}

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:          r.ID,
		MatchID:     domain.MatchID(r.MatchID),
		SenderID:    domain.UserID(r.SenderID),
		ReceiverID:  domain.UserID(r.ReceiverID),
		Payload:     r.Payload,
		ContentType: domain.ContentType(r.ContentType),
		MediaURL:    r.MediaURL,
		CreatedAt:   r.CreatedAt,
		ReadAt:      r.ReadAt,
	}
}
