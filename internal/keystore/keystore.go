package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"kindred/internal/crypto"
	"kindred/internal/domain"
)

const keyFilename = "keys.json.enc"

// FileStore persists per-user private keys as a single sealed file under
// dir. A per-process read-through cache avoids re-opening the blob on every
// lookup; Reset drops it on sign-out.
type FileStore struct {
	dir    string
	secret string
	log    zerolog.Logger

	mu    sync.Mutex
	cache map[domain.UserID]domain.X25519Private
}

// NewFileStore returns a FileStore rooted at dir, sealed with secret.
func NewFileStore(dir, secret string, log zerolog.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		secret: secret,
		log:    log.With().Str("component", "keystore").Logger(),
	}
}

// EnsureKeys returns the public key for userID, deriving and persisting the
// pair first if this device holds none. Calling it twice for the same user
// never changes the stored key: derivation is deterministic and an existing
// entry short-circuits it anyway.
func (s *FileStore) EnsureKeys(userID domain.UserID) (domain.X25519Public, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return domain.X25519Public{}, err
	}
	if priv, ok := keys[userID]; ok {
		return crypto.PublicFor(priv)
	}

	kp, err := crypto.DeriveKeyPair(userID)
	if err != nil {
		return domain.X25519Public{}, err
	}
	keys[userID] = kp.Private
	if err := s.persist(keys); err != nil {
		return domain.X25519Public{}, err
	}
	s.log.Debug().Str("user", crypto.Fingerprint([]byte(userID))).Msg("derived and stored key pair")
	return kp.Public, nil
}

// PrivateKey returns the stored private key for userID. A miss is reported
// via ok=false, not an error: the caller falls back to plaintext.
func (s *FileStore) PrivateKey(userID domain.UserID) (domain.X25519Private, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return domain.X25519Private{}, false, err
	}
	priv, ok := keys[userID]
	return priv, ok, nil
}

// HasKeys reports whether a key pair exists for userID without deriving one.
func (s *FileStore) HasKeys(userID domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := keys[userID]
	return ok, nil
}

// Reset drops the in-memory cache. The next access re-reads the sealed
// file, so key material cached for a signed-out identity is never served to
// the next session.
func (s *FileStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
}

// load returns the key map, reading and unsealing the file on first use.
// Callers must hold s.mu.
func (s *FileStore) load() (map[domain.UserID]domain.X25519Private, error) {
	if s.cache != nil {
		return s.cache, nil
	}

	b, err := readFile(filepath.Join(s.dir, keyFilename))
	if err != nil {
		return nil, err
	}
	keys := make(map[domain.UserID]domain.X25519Private)
	if b != nil {
		raw, err := open(s.secret, b)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, err
		}
		crypto.Wipe(raw)
	}
	s.cache = keys
	return keys, nil
}

// persist seals and writes the key map. Callers must hold s.mu.
func (s *FileStore) persist(keys map[domain.UserID]domain.X25519Private) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	defer crypto.Wipe(raw)

	N, r, p := scryptParamsDefault()
	blob, err := seal(s.secret, raw, N, r, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, keyFilename), blob, 0o600)
}

// Compile-time assertion that FileStore implements domain.KeyStore.
var _ domain.KeyStore = (*FileStore)(nil)
