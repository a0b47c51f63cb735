// Package crypto exposes the minimal primitives used by kindred.
//
// Contents
//
//   - Deterministic X25519 key derivation from a stable user id
//     (DeriveKeyPair) plus Diffie-Hellman (DH)
//   - The sealed-envelope codec for text payloads (Seal, Open,
//     LooksSealed)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions take and return the fixed-size array types defined in
// internal/domain. Derivation and the envelope format are part of the
// cross-device contract; neither may change without a version bump.
package crypto
