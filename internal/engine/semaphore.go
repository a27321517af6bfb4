package engine

import "runtime"

// sourceSemaphore bounds concurrent source backend calls across every
// in-flight Search on this Engine (spec §5), a buffered-channel semaphore in
// the style of the teacher's channel-based async coordination (internal/async's
// stopCh/doneCh control channels, generalized here to a counting semaphore).
type sourceSemaphore chan struct{}

// newSourceSemaphore builds a semaphore of capacity n. Zero or negative n
// derives a default from runtime.NumCPU()*2, matching config.EngineConfig's
// documented MaxConcurrentSources default.
func newSourceSemaphore(n int) sourceSemaphore {
	if n <= 0 {
		n = runtime.NumCPU() * 2
	}
	return make(sourceSemaphore, n)
}

func (s sourceSemaphore) acquire() { s <- struct{}{} }
func (s sourceSemaphore) release() { <-s }
