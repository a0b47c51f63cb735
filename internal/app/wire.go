package app

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"kindred/internal/directory"
	"kindred/internal/domain"
	"kindred/internal/keystore"
	"kindred/internal/moderation"
	"kindred/internal/notify"
	"kindred/internal/realtime"
	encryptionsvc "kindred/internal/services/encryption"
	messagesvc "kindred/internal/services/message"
	"kindred/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	DB         *bun.DB
	Keys       domain.KeyStore
	Directory  domain.KeyDirectory
	Profiles   domain.ProfileStore
	Matches    domain.MatchStore
	Messages   domain.MessageStore
	Feed       domain.ChangeFeed
	Encryption domain.EncryptionService
	Pipeline   domain.MessageService
	Log        zerolog.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(ctx context.Context, cfg Config) (*Wire, error) {
	log := newLogger(cfg.LogLevel)

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	db := store.Connect(cfg.DatabaseDSN)
	if err := store.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	profiles := store.NewProfileRepo(db)
	matches := store.NewMatchRepo(db)
	messages := store.NewMessageRepo(db)
	feed := realtime.NewFeed(db, log)

	keys := keystore.NewFileStore(cfg.Home, cfg.DeviceSecret, log)
	dir := directory.New(profiles, log)

	var validator domain.Validator = moderation.AllowAll{}
	if cfg.ModerationURL != "" {
		validator = moderation.NewHTTP(cfg.ModerationURL, httpClient)
	}
	var notifier domain.Notifier = notify.Discard{}
	if cfg.PushURL != "" {
		notifier = notify.NewPushClient(cfg.PushURL, httpClient, log)
	}

	return &Wire{
		DB:         db,
		Keys:       keys,
		Directory:  dir,
		Profiles:   profiles,
		Matches:    matches,
		Messages:   messages,
		Feed:       feed,
		Encryption: encryptionsvc.New(keys, dir, log),
		Pipeline: messagesvc.New(keys, dir, profiles, matches, messages, feed,
			validator, notifier, log),
		Log: log,
	}, nil
}

// Close releases the database pool.
func (w *Wire) Close() error { return w.DB.Close() }

// SignOut invalidates session-derived caches so a later sign-in on this
// device cannot observe the previous identity's key material.
func (w *Wire) SignOut() { w.Keys.Reset() }

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
