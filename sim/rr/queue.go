// Implements the ReadyQueue, which holds admitted processes waiting for the CPU.
// Processes are enqueued on arrival and after a deferred requeue.

package rr

import (
	"fmt"
	"strings"
)

// ReadyQueue represents a FIFO queue of processes waiting to be dispatched.
// Processes are stored by value, so a copied queue never aliases another.
type ReadyQueue struct {
	queue []Process
}

// Enqueue adds a process to the back of the ready queue.
func (rq *ReadyQueue) Enqueue(p Process) {
	rq.queue = append(rq.queue, p)
}

func (rq *ReadyQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range rq.queue {
		sb.WriteString(fmt.Sprint(p))
		if i < len(rq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of processes in the queue.
func (rq *ReadyQueue) Len() int {
	return len(rq.queue)
}

// Peek returns the process at the front of the queue without removing it.
// ok is false if the queue is empty.
func (rq *ReadyQueue) Peek() (p Process, ok bool) {
	if len(rq.queue) == 0 {
		return Process{}, false
	}
	return rq.queue[0], true
}

// Dequeue removes and returns the process at the front of the queue.
// ok is false if the queue is empty.
func (rq *ReadyQueue) Dequeue() (p Process, ok bool) {
	if len(rq.queue) == 0 {
		return Process{}, false
	}
	p = rq.queue[0]
	rq.queue = rq.queue[1:]
	return p, true
}

// Items returns a copy of the queue contents, head first.
func (rq *ReadyQueue) Items() []Process {
	out := make([]Process, len(rq.queue))
	copy(out, rq.queue)
	return out
}

// IDs returns the queued process ids, head first.
func (rq *ReadyQueue) IDs() []string {
	ids := make([]string, len(rq.queue))
	for i, p := range rq.queue {
		ids[i] = p.ID
	}
	return ids
}

func (rq ReadyQueue) clone() ReadyQueue {
	return ReadyQueue{queue: rq.Items()}
}
