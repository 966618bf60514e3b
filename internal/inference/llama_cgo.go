//go:build llama

package inference

// cgo link directives for the in-process llama backend.
// - rpath of $ORIGIN so libllama.so is found next to the built binary.
// - -L${SRCDIR}/../../bin so the linker finds libllama.so at link time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
