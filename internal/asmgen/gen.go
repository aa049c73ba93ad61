//go:build ignore

// This program generates zerofill_amd64.s, the assembly routine the
// central cache uses to zero a freshly carved span before it's cut up
// into objects: a span's backing pages are zeroed once, when the span is
// carved, not on every individual object hand-out (see DESIGN.md).
//
// Grounded on the teacher's own use of avo: go-go1.20.5's
// src/crypto/internal/bigmod/_asm and .../edwards25519/field/_asm both
// generate their hot-path assembly this way instead of hand-writing it,
// and both pin the same github.com/mmcloughlin/avo v0.4.0 this program
// uses (see the module's go.mod).
//
// Run with: go run gen.go -out ../ccache/zerofill_amd64.s
package main

import (
	. "github.com/mmcloughlin/avo/build"
	. "github.com/mmcloughlin/avo/gotypes"
	. "github.com/mmcloughlin/avo/operand"
	. "github.com/mmcloughlin/avo/reg"
)

func main() {
	TEXT("zerofill", NOSPLIT, "func(base uintptr, n uintptr)")
	Doc("zerofill stores n zero bytes starting at base, 32 at a time.")
	base := Load(Param("base"), GP64())
	n := Load(Param("n"), GP64())

	zero := YMM()
	VPXOR(zero, zero, zero)

	Label("loop")
	CMPQ(n, Imm(32))
	JL(LabelRef("tail"))
	VMOVDQU(zero, Mem{Base: base})
	ADDQ(Imm(32), base)
	SUBQ(Imm(32), n)
	JMP(LabelRef("loop"))

	Label("tail")
	CMPQ(n, Imm(0))
	JE(LabelRef("done"))

	Label("tailloop")
	MOVB(Imm(0), Mem{Base: base})
	INCQ(base)
	DECQ(n)
	JNZ(LabelRef("tailloop"))

	Label("done")
	VZEROUPPER()
	RET()

	Generate()
}
