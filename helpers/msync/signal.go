package msync

type Nothing struct{}

// Signal is a single-slot wake up notification.
// Set() never blocks, any number of Set() before Wait() are observed as one.
// Signal carries no count: the waiter must re-check its condition after wake up.
type Signal chan Nothing

func NewSignal() Signal { return make(chan Nothing, 1) }

// Set raises the signal unless it is already raised.
func (s Signal) Set() {
	select {
	case s <- Nothing{}:
	default:
	}
}

// Clear consumes a raised signal without blocking, reports whether it was raised.
func (s Signal) Clear() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}

func (s Signal) Wait() { <-s }

// WaitStop blocks until the signal is raised or stop is closed.
// Returns false on stop.
func (s Signal) WaitStop(stop <-chan struct{}) bool {
	select {
	case <-s:
		return true
	case <-stop:
		return false
	}
}
