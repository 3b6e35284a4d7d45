package chainconn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatchUnsubscribeRunsOnce(t *testing.T) {
	released := 0
	w := NewWatch(func() { released++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, released)
	select {
	case <-w.Done():
	default:
		t.Fatal("done must be closed after release")
	}
}

func TestWatchSendAfterRelease(t *testing.T) {
	w := NewWatch(nil)

	assert.True(t, w.Send(TxStatus{Phase: PhaseBroadcast}))
	w.Unsubscribe()
	assert.False(t, w.Send(TxStatus{Phase: PhaseFinalized}), "producers must stop after a release")
}

func TestWatchDeliversInOrder(t *testing.T) {
	w := NewWatch(nil)
	defer w.Unsubscribe()

	phases := []Phase{PhaseBroadcast, PhaseInBlock, PhaseFinalized}
	for _, p := range phases {
		w.Send(TxStatus{Phase: p})
	}

	for _, want := range phases {
		got := <-w.Updates()
		assert.Equal(t, want, got.Phase)
	}
}
