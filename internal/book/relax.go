package book

import "runtime"

// cpuRelax yields the current goroutine to the scheduler. The teacher's
// ring package (ring/relax_amd64.go) emits a raw x86 PAUSE instruction via
// an assembly stub with a portable runtime.Gosched fallback for other
// architectures (ring/relax_stub.go); this package keeps only the portable
// fallback, since the seqlock's "writer in progress" window is nanoseconds
// wide and a spinning reader here is rare enough that the assembly stub's
// extra build complexity is not worth carrying.
func cpuRelax() {
	runtime.Gosched()
}
