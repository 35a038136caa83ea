// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package processor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSerializesPerAssistant(t *testing.T) {
	q := NewQueue()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		ok := q.Enqueue("asst-1", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		require.True(t, ok)
	}
	q.Close()

	require.Len(t, order, 10)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestQueueIndependentLanes(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	wg.Add(2)
	release := make(chan struct{})

	// A blocked lane must not stall another assistant's lane.
	q.Enqueue("slow", func() {
		defer wg.Done()
		<-release
	})
	done := make(chan struct{})
	q.Enqueue("fast", func() {
		defer wg.Done()
		close(done)
	})

	<-done
	close(release)
	wg.Wait()
	q.Close()
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue()
	q.Close()

	ok := q.Enqueue("asst-1", func() {
		t.Fatal("task ran after close")
	})
	assert.False(t, ok)
}

func TestQueueConcurrentEnqueueAndClose(t *testing.T) {
	q := NewQueue()

	var accepted, executed int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assistantID := fmt.Sprintf("asst-%d", g)
			for i := 0; i < 200; i++ {
				ok := q.Enqueue(assistantID, func() {
					atomic.AddInt64(&executed, 1)
				})
				if !ok {
					// Queue closed underneath us; later calls keep
					// returning false rather than panicking.
					continue
				}
				atomic.AddInt64(&accepted, 1)
				runtime.Gosched()
			}
		}()
	}

	close(start)
	runtime.Gosched()
	q.Close()
	wg.Wait()

	// Close drains the lanes, so every accepted task ran.
	assert.Equal(t, atomic.LoadInt64(&accepted), atomic.LoadInt64(&executed))
}

func TestQueueCloseTwice(t *testing.T) {
	q := NewQueue()
	q.Enqueue("asst-1", func() {})
	q.Close()
	q.Close()
}
