// Package keystore is the secure on-device home of private key material.
//
// Keys are derived deterministically from the user id, sealed with a
// device-local secret, and written under the app's home directory. Losing
// the file (app-data reset) is acceptable: the next EnsureKeys re-derives
// the identical pair.
package keystore
