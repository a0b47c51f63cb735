// Package encryption readies a user's key material for messaging.
//
// It combines the local keystore (deterministic derivation) with the shared
// key directory (publication and healing of stale entries).
package encryption
