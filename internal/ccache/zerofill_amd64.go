//go:build amd64

package ccache

// zerofill is implemented in zerofill_amd64.s, generated by
// internal/asmgen/gen.go via github.com/mmcloughlin/avo (see that file's
// doc comment). It stores n zero bytes starting at base.
func zerofill(base, n uintptr)
