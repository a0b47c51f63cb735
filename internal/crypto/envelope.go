package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"kindred/internal/domain"
)

// Envelope format for encrypted text payloads:
//
//	v1:<base64 nonce>:<base64 ciphertext>
//
// Legacy rows predating the encryption rollout carry raw plaintext with no
// such structure; LooksSealed distinguishes the two without decrypting.
const (
	envelopeVersion = "v1"
	envelopeInfo    = "kindred/envelope/v1"
	envelopeParts   = 3
)

var (
	// ErrMalformedEnvelope is returned when a payload claims to be sealed
	// but cannot be parsed.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrDecrypt is returned when the ciphertext fails authentication:
	// tampering, corruption, or a wrong key pairing.
	ErrDecrypt = errors.New("envelope decryption failed")
)

// Seal encrypts plaintext from the sender to the recipient and returns the
// envelope string. Only the holder of the recipient's private key paired
// with the sender's public key can open it, and because the AEAD key is
// shared exclusively by the pair, a successful open also authenticates the
// sender.
func Seal(plaintext string, senderPriv domain.X25519Private, recipientPub domain.X25519Public) (string, error) {
	key, err := pairKey(senderPriv, recipientPub)
	if err != nil {
		return "", err
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)

	return envelopeVersion + ":" + b64.EncodeToString(nonce) + ":" + b64.EncodeToString(ct), nil
}

// Open decrypts an envelope produced by Seal. It fails closed: malformed or
// tampered input returns an error, never garbage.
func Open(envelope string, recipientPriv domain.X25519Private, senderPub domain.X25519Public) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != envelopeParts || parts[0] != envelopeVersion {
		return "", ErrMalformedEnvelope
	}
	nonce, err := b64.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	ct, err := b64.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return "", ErrMalformedEnvelope
	}

	key, err := pairKey(recipientPriv, senderPub)
	if err != nil {
		return "", err
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(pt), nil
}

// LooksSealed reports whether payload has the structure of a sealed
// envelope. It is a purely structural sniff used to tell legacy plaintext
// rows apart from encrypted ones; it never attempts decryption. A plaintext
// that happens to contain colons ("see you at 5:30") fails the version and
// base64 checks and is treated as plaintext.
func LooksSealed(payload string) bool {
	parts := strings.Split(payload, ":")
	if len(parts) != envelopeParts || parts[0] != envelopeVersion {
		return false
	}
	nonce, err := b64.DecodeString(parts[1])
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return false
	}
	if _, err := b64.DecodeString(parts[2]); err != nil {
		return false
	}
	return true
}

var b64 = base64.StdEncoding
