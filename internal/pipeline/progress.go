package pipeline

import "sync"

// Latest decouples a slow consumer from the pipeline. Snapshots land in a
// one-slot mailbox drained by a background goroutine; a newer snapshot
// replaces one the consumer has not picked up yet. The returned send never
// blocks on fn.
//
// stop closes the mailbox and waits until fn has seen the last snapshot.
// Snapshots sent after stop are dropped.
func Latest(fn ProgressFunc) (send ProgressFunc, stop func()) {
	slot := make(chan Progress, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range slot {
			fn(p)
		}
	}()

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)
	send = func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		for {
			select {
			case slot <- p:
				return
			default:
				select {
				case <-slot:
				default:
				}
			}
		}
	}
	stop = func() {
		once.Do(func() {
			mu.Lock()
			closed = true
			close(slot)
			mu.Unlock()
			<-done
		})
	}
	return send, stop
}
