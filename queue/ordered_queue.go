package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/twitter/enginedispatch/domain"
)

// OrderedJobQueue is a blocking priority queue of jobs for one group.
// It is safe for any number of concurrent producers and consumers.
type OrderedJobQueue struct {
	name string

	mu   sync.Mutex
	jobs jobHeap
	// Closed and replaced on every Add, waking all blocked Takes.
	ready chan struct{}
}

func NewOrderedJobQueue(name string) *OrderedJobQueue {
	return &OrderedJobQueue{name: name, ready: make(chan struct{})}
}

func (q *OrderedJobQueue) Name() string { return q.name }

// Add inserts job in O(log n). It never blocks and never drops.
func (q *OrderedJobQueue) Add(job *domain.Job) {
	q.mu.Lock()
	if job.SubmitTime.IsZero() {
		job.SubmitTime = time.Now()
	}
	heap.Push(&q.jobs, job)
	close(q.ready)
	q.ready = make(chan struct{})
	q.mu.Unlock()
}

// Take removes and returns the first job, blocking until one is available.
// Returns ctx.Err() if ctx is done first.
func (q *OrderedJobQueue) Take(ctx context.Context) (*domain.Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := heap.Pop(&q.jobs).(*domain.Job)
			q.mu.Unlock()
			return job, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Poll removes and returns the first job if there is one.
func (q *OrderedJobQueue) Poll() (*domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	return heap.Pop(&q.jobs).(*domain.Job), true
}

// Peek returns the first job without removing it.
func (q *OrderedJobQueue) Peek() (*domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	return q.jobs[0], true
}

// Size is a snapshot, stale as soon as it returns under concurrent use.
func (q *OrderedJobQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Remove drops the queued job with the given id. Returns false if it is not queued.
func (q *OrderedJobQueue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.jobs {
		if job.JobID == jobID {
			heap.Remove(&q.jobs, i)
			return true
		}
	}
	return false
}

// Jobs returns the queued jobs in dequeue order.
func (q *OrderedJobQueue) Jobs() []*domain.Job {
	q.mu.Lock()
	cp := make(jobHeap, len(q.jobs))
	copy(cp, q.jobs)
	q.mu.Unlock()

	out := make([]*domain.Job, 0, len(cp))
	for len(cp) > 0 {
		out = append(out, heap.Pop(&cp).(*domain.Job))
	}
	return out
}

// jobHeap implements heap.Interface, ordered by domain.Job.Before.
type jobHeap []*domain.Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(*domain.Job))
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
