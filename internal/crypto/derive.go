package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"kindred/internal/domain"
)

// Derivation parameters. These are part of the cross-device contract: two
// devices must produce byte-identical keys for the same user id, so none of
// them may ever change for the v1 scheme.
const (
	deriveSalt    = "kindred/e2e-key/v1"
	deriveTime    = 3
	deriveMemory  = 64 * 1024
	deriveThreads = 1
)

// DeriveKeyPair derives the X25519 key pair for userID.
//
// The private scalar is argon2id(userID, fixed salt), clamped per RFC 7748.
// Derivation is pure: the same identity yields the same pair on every device
// and after every reinstall, which is what lets two platforms decrypt each
// other's history without a key exchange.
func DeriveKeyPair(userID domain.UserID) (domain.KeyPair, error) {
	seed := argon2.IDKey([]byte(userID), []byte(deriveSalt), deriveTime, deriveMemory, deriveThreads, 32)
	defer Wipe(seed)

	var priv domain.X25519Private
	copy(priv[:], seed)
	clamp(&priv)

	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, err
	}
	var pub domain.X25519Public
	copy(pub[:], pb)
	return domain.KeyPair{Public: pub, Private: priv}, nil
}

// PublicFor recomputes the public half of priv.
func PublicFor(priv domain.X25519Private) (domain.X25519Public, error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.X25519Public{}, err
	}
	var pub domain.X25519Public
	copy(pub[:], pb)
	return pub, nil
}

// DH computes X25519 Diffie-Hellman.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

// pairKey derives the AEAD key the two parties share. X25519 is symmetric in
// (a, B) vs (b, A), so sender and recipient arrive at the same key from
// opposite halves.
func pairKey(priv domain.X25519Private, pub domain.X25519Public) ([]byte, error) {
	secret, err := DH(priv, pub)
	if err != nil {
		return nil, err
	}
	defer Wipe(secret[:])

	h := hkdf.New(sha256.New, secret[:], nil, []byte(envelopeInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
