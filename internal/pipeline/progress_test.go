package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestDoesNotBlockOnSlowConsumer(t *testing.T) {
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []int
	)
	send, stop := Latest(func(p Progress) {
		<-release
		mu.Lock()
		seen = append(seen, p.ProcessedSections)
		mu.Unlock()
	})

	sent := make(chan struct{})
	go func() {
		for i := 0; i <= 100; i++ {
			send(Progress{ProcessedSections: i})
		}
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked on a stalled consumer")
	}

	close(release)
	stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.LessOrEqual(t, len(seen), 3, "stale snapshots should be dropped")
	assert.Equal(t, 100, seen[len(seen)-1], "the final snapshot must be delivered")
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "snapshots must arrive in order")
	}
}

func TestLatestStopIsIdempotent(t *testing.T) {
	var got []Progress
	send, stop := Latest(func(p Progress) { got = append(got, p) })
	send(Progress{StatusMessage: "one"})
	stop()
	stop()
	send(Progress{StatusMessage: "after stop"})

	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].StatusMessage)
}
