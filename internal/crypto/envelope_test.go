package crypto_test

import (
	"errors"
	"strings"
	"testing"

	"kindred/internal/crypto"
	"kindred/internal/domain"
)

func derive(t *testing.T, user domain.UserID) domain.KeyPair {
	t.Helper()
	kp, err := crypto.DeriveKeyPair(user)
	if err != nil {
		t.Fatalf("DeriveKeyPair(%q): %v", user, err)
	}
	return kp
}

func TestSealOpen_RoundTrip(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")

	for _, plaintext := range []string{
		"hello",
		"",
		"see you at 5:30 :)",
		"multi\nline\nbody",
		"emoji 🩷 and unicode ñ",
	} {
		env, err := crypto.Seal(plaintext, alice.Private, bob.Public)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plaintext, err)
		}
		if env == plaintext {
			t.Fatalf("Seal(%q) returned the plaintext", plaintext)
		}
		if !strings.Contains(env, ":") {
			t.Fatalf("envelope has no delimiter: %q", env)
		}

		got, err := crypto.Open(env, bob.Private, alice.Public)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip: got %q, want %q", got, plaintext)
		}
	}
}

// The sender can reopen their own envelope with their private key and the
// recipient's public key; the pipeline relies on this when the change feed
// echoes back a message we sent.
func TestOpen_SenderSide(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")

	env, err := crypto.Seal("hey", alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := crypto.Open(env, alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "hey" {
		t.Fatalf("got %q, want %q", got, "hey")
	}
}

func TestOpen_WrongKeyFailsClosed(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")
	eve := derive(t, "eve")

	env, err := crypto.Seal("secret", alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := crypto.Open(env, eve.Private, alice.Public); !errors.Is(err, crypto.ErrDecrypt) {
		t.Fatalf("want ErrDecrypt for wrong key, got %v", err)
	}
}

func TestOpen_TamperedFailsClosed(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")

	env, err := crypto.Seal("secret", alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Flip a character inside the ciphertext field.
	i := strings.LastIndex(env, ":") + 1
	tampered := env[:i] + "A" + env[i+1:]
	if tampered == env {
		tampered = env[:i] + "B" + env[i+1:]
	}
	if _, err := crypto.Open(tampered, bob.Private, alice.Public); err == nil {
		t.Fatal("tampered envelope decrypted")
	}
}

func TestOpen_MalformedEnvelope(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")

	for _, env := range []string{
		"",
		"hello",
		"v1:only-two",
		"v2:AAAA:AAAA",
		"v1:!!!:AAAA",
		"v1:AAAA:!!!",
	} {
		if _, err := crypto.Open(env, bob.Private, alice.Public); !errors.Is(err, crypto.ErrMalformedEnvelope) {
			t.Fatalf("Open(%q): want ErrMalformedEnvelope, got %v", env, err)
		}
	}
}

func TestLooksSealed(t *testing.T) {
	alice := derive(t, "alice")
	bob := derive(t, "bob")

	env, err := crypto.Seal("hi", alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !crypto.LooksSealed(env) {
		t.Fatalf("LooksSealed(%q) = false for a real envelope", env)
	}

	for _, payload := range []string{
		"hi",
		"see you at 5:30",
		"a:b:c",
		"v1:notbase64!:AAAA",
		"v1:AAAA",
		domain.PhotoPlaceholder,
	} {
		if crypto.LooksSealed(payload) {
			t.Fatalf("LooksSealed(%q) = true for plaintext", payload)
		}
	}
}
