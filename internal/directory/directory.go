// Package directory maps user ids to published public keys.
//
// The directory is not its own table: the key rides on the shared profile
// record, so anyone who can read a profile can fetch the key. Only the
// owning identity ever writes its entry, always with the deterministically
// derived value.
package directory

import (
	"context"
	"encoding/base64"

	"github.com/rs/zerolog"

	"kindred/internal/crypto"
	"kindred/internal/domain"
)

// Directory implements domain.KeyDirectory over the profile store.
type Directory struct {
	profiles domain.ProfileStore
	log      zerolog.Logger
}

func New(profiles domain.ProfileStore, log zerolog.Logger) *Directory {
	return &Directory{
		profiles: profiles,
		log:      log.With().Str("component", "directory").Logger(),
	}
}

// Publish upserts the public key for userID. Idempotent, and safe to call
// on every app foreground: repeated writes of the same value are stable,
// and a divergent stored value (a stale write from an older app version)
// is overwritten because local deterministic derivation is authoritative.
func (d *Directory) Publish(ctx context.Context, userID domain.UserID, pub domain.X25519Public) error {
	encoded := base64.StdEncoding.EncodeToString(pub.Slice())
	if err := d.profiles.UpsertPublicKey(ctx, userID, encoded); err != nil {
		return err
	}
	d.log.Debug().
		Str("key", crypto.Fingerprint(pub.Slice())).
		Msg("published public key")
	return nil
}

// Lookup returns the published key for userID. ok=false covers both a
// missing profile and a profile with no key (the counterparty predates the
// encryption rollout, or publication failed); the caller falls back to
// plaintext either way.
func (d *Directory) Lookup(ctx context.Context, userID domain.UserID) (domain.X25519Public, bool, error) {
	prof, found, err := d.profiles.Get(ctx, userID)
	if err != nil {
		return domain.X25519Public{}, false, err
	}
	if !found || prof.EncryptionPublicKey == "" {
		return domain.X25519Public{}, false, nil
	}

	raw, err := base64.StdEncoding.DecodeString(prof.EncryptionPublicKey)
	if err != nil || len(raw) != 32 {
		// An unreadable entry is equivalent to no entry; the owner heals it
		// on their next foreground via Publish.
		d.log.Warn().Str("user", string(userID)).Msg("unparseable published key, treating as absent")
		return domain.X25519Public{}, false, nil
	}
	var pub domain.X25519Public
	copy(pub[:], raw)
	return pub, true, nil
}

// Compile-time assertion that Directory implements domain.KeyDirectory.
var _ domain.KeyDirectory = (*Directory)(nil)
