package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireSerializesPerKey(t *testing.T) {
	k := NewKeyed()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.Acquire("same-key")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()

	releaseA := k.Acquire("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := k.Acquire("b")
		release()
		close(done)
	}()

	<-done
}

func TestEntriesAreReclaimed(t *testing.T) {
	k := NewKeyed()

	release := k.Acquire("key")
	release()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}

func TestReleaseIsIdempotent(t *testing.T) {
	k := NewKeyed()

	release := k.Acquire("key")
	release()
	release()

	// Lock must be acquirable again after double release.
	release = k.Acquire("key")
	release()
}
