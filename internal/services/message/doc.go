// Package message orchestrates the send and receive pipeline: match and
// moderation guards, best-effort encryption with plaintext fallback, row
// persistence, push dispatch, and the live conversation stream fed by the
// change feed.
package message
