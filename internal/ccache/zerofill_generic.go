//go:build !amd64

package ccache

import "unsafe"

// zerofill is the portable fallback for architectures the avo-generated
// zerofill_amd64.s doesn't cover.
func zerofill(base, n uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(n))
	for i := range b {
		b[i] = 0
	}
}
