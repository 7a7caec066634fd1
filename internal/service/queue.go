package service

import "github.com/bnema/transq/internal/domain"

// jobQueue is an ordered list of pending jobs. It does no locking of its own;
// every access happens under Pipeline.mu so that dequeue and the processing
// flag change together.
type jobQueue struct {
	items []domain.Job
	seq   int64
}

// push appends job. Jobs carrying an EnqueueOrder (restored from a snapshot)
// keep it; the sequence is advanced past it.
func (q *jobQueue) push(job domain.Job) domain.Job {
	if job.EnqueueOrder > q.seq {
		q.seq = job.EnqueueOrder
	} else {
		q.seq++
		job.EnqueueOrder = q.seq
	}
	q.items = append(q.items, job)
	return job
}

func (q *jobQueue) pop() (domain.Job, bool) {
	if len(q.items) == 0 {
		return domain.Job{}, false
	}
	job := q.items[0]
	q.items[0] = domain.Job{}
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) index(name string) int {
	for i, job := range q.items {
		if job.Key() == name {
			return i
		}
	}
	return -1
}

func (q *jobQueue) contains(name string) bool {
	return q.index(name) >= 0
}

// remove takes the pending job with the given original filename out of the
// queue without disturbing the order of the others.
func (q *jobQueue) remove(name string) (domain.Job, bool) {
	i := q.index(name)
	if i < 0 {
		return domain.Job{}, false
	}
	job := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return job, true
}

// jobs returns a copy, in queue order.
func (q *jobQueue) jobs() []domain.Job {
	out := make([]domain.Job, len(q.items))
	copy(out, q.items)
	return out
}

func (q *jobQueue) names() []string {
	out := make([]string, len(q.items))
	for i, job := range q.items {
		out[i] = job.Key()
	}
	return out
}

func (q *jobQueue) len() int {
	return len(q.items)
}
