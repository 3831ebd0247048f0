// Package memzero overwrites sensitive byte slices once they're no longer
// needed, so a stray later bug (a logged struct, a leaked buffer) can't
// resurrect key material from memory.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros and keeps b reachable until the overwrite
// completes, so the compiler can't prove the write is dead and drop it.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(b)
}
