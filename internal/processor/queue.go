// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package processor

import (
	"log"
	"sync"
)

const laneBuffer = 16

// Queue serializes background processing per assistant: tasks for the
// same assistant run one at a time in submission order, while tasks for
// different assistants run concurrently.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string]chan func()
	wg     sync.WaitGroup
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		lanes: make(map[string]chan func()),
	}
}

// Enqueue schedules task on the assistant's lane. Returns false when the
// queue is closed or the lane is full; the caller decides whether a
// dropped task matters.
func (q *Queue) Enqueue(assistantID string, task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	lane, ok := q.lanes[assistantID]
	if !ok {
		lane = make(chan func(), laneBuffer)
		q.lanes[assistantID] = lane
		q.wg.Add(1)
		go q.run(assistantID, lane)
	}

	// The send stays under the mutex so Close cannot close the lane
	// between the closed check and the send. The default arm keeps it
	// from blocking while the lock is held.
	select {
	case lane <- task:
		return true
	default:
		log.Printf("[processor] queue full for assistant %s, dropping task", assistantID)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) run(assistantID string, lane chan func()) {
	defer q.wg.Done()
	for task := range lane {
		task()
	}
}
