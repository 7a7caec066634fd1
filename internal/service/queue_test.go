package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/domain"
)

func TestJobQueue_FIFO(t *testing.T) {
	var q jobQueue
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"} {
		q.push(domain.Job{OriginalName: name, InputPath: "/in/" + name})
	}

	var got []string
	for {
		job, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, job.Key())
	}
	assert.Equal(t, []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}, got)
	assert.Equal(t, 0, q.len())
}

func TestJobQueue_InterleavedPushPop(t *testing.T) {
	var q jobQueue
	q.push(domain.Job{OriginalName: "1"})
	q.push(domain.Job{OriginalName: "2"})

	first, _ := q.pop()
	q.push(domain.Job{OriginalName: "3"})
	second, _ := q.pop()
	third, _ := q.pop()

	assert.Equal(t, "1", first.Key())
	assert.Equal(t, "2", second.Key())
	assert.Equal(t, "3", third.Key())
}

func TestJobQueue_EnqueueOrder(t *testing.T) {
	var q jobQueue

	a := q.push(domain.Job{OriginalName: "a"})
	restored := q.push(domain.Job{OriginalName: "r", EnqueueOrder: 41})
	b := q.push(domain.Job{OriginalName: "b"})

	assert.Equal(t, int64(1), a.EnqueueOrder)
	assert.Equal(t, int64(41), restored.EnqueueOrder)
	assert.Equal(t, int64(42), b.EnqueueOrder)
}

func TestJobQueue_Remove(t *testing.T) {
	var q jobQueue
	for _, name := range []string{"a", "b", "c"} {
		q.push(domain.Job{OriginalName: name})
	}

	job, ok := q.remove("b")
	require.True(t, ok)
	assert.Equal(t, "b", job.Key())
	assert.Equal(t, []string{"a", "c"}, q.names())

	_, ok = q.remove("b")
	assert.False(t, ok)
	assert.True(t, q.contains("a"))
	assert.False(t, q.contains("b"))
}

func TestJobQueue_JobsIsACopy(t *testing.T) {
	var q jobQueue
	q.push(domain.Job{OriginalName: "a"})

	jobs := q.jobs()
	jobs[0].OriginalName = "changed"

	assert.Equal(t, []string{"a"}, q.names())
}

func TestPushFrontAndWithout(t *testing.T) {
	list := pushFront(nil, "a")
	list = pushFront(list, "b")
	list = pushFront(list, "a")
	assert.Equal(t, []string{"a", "b"}, list)

	assert.Equal(t, []string{"b"}, without(list, "a", "missing"))
	assert.Equal(t, []string{"a", "b"}, list, "without does not modify its input")
	assert.Empty(t, without(nil, "a"))
}
