package crypto

import "runtime"

// Wipe overwrites b with zeros after secret material has been used. Best
// effort only: the noinline pragma and KeepAlive discourage the compiler
// from eliding the stores, but copies made by the GC are out of reach.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
