package encryption

import (
	"context"

	"github.com/rs/zerolog"

	"kindred/internal/crypto"
	"kindred/internal/domain"
	"kindred/pkg/apperrors"
)

// Service readies a user's encryption state: local key material plus the
// published directory entry.
//
// It is safe and intended to be called on every app foreground. Because
// derivation is deterministic, repeated calls converge on the same key, and
// the directory write heals any earlier publish failure or stale entry left
// by an older app version.
type Service struct {
	keys domain.KeyStore
	dir  domain.KeyDirectory
	log  zerolog.Logger
}

func New(keys domain.KeyStore, dir domain.KeyDirectory, log zerolog.Logger) *Service {
	return &Service{
		keys: keys,
		dir:  dir,
		log:  log.With().Str("component", "encryption").Logger(),
	}
}

// EnsureReady derives-or-loads the local key pair and makes sure the
// directory carries the matching public key.
//
// Failure handling mirrors the product rule that encryption never blocks
// messaging: a keystore failure is returned as a typed error the caller
// treats as "no encryption available", and a directory publish failure is
// only logged, since the worst case is counterparties sending plaintext
// until the next foreground heals it.
func (s *Service) EnsureReady(ctx context.Context, userID domain.UserID) (domain.X25519Public, error) {
	pub, err := s.keys.EnsureKeys(userID)
	if err != nil {
		s.log.Error().Err(err).Msg("key derivation unavailable, messaging degrades to plaintext")
		return domain.X25519Public{}, apperrors.Wrap(apperrors.CodeUnavailable, "encryption keys unavailable", err)
	}

	existing, ok, err := s.dir.Lookup(ctx, userID)
	if err == nil && ok && existing == pub {
		return pub, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("directory lookup failed, publishing anyway")
	} else if ok && existing != pub {
		s.log.Info().
			Str("stored", crypto.Fingerprint(existing.Slice())).
			Str("derived", crypto.Fingerprint(pub.Slice())).
			Msg("published key diverges from derived key, overwriting")
	}

	if err := s.dir.Publish(ctx, userID, pub); err != nil {
		s.log.Warn().Err(err).Msg("publish failed, will heal on next foreground")
	}
	return pub, nil
}

// Compile-time assertion that Service implements domain.EncryptionService.
var _ domain.EncryptionService = (*Service)(nil)
