package pool

import (
	"sync"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/imyhxy/fiftyone/test"
)

func TestRunSequential(t *testing.T) {
	t.Parallel()

	var order []int
	tasks := make([]func(), 5)
	for i := range tasks {
		i := i
		tasks[i] = func() { order = append(order, i) }
	}

	Run(log.NewNopLogger(), "testing", 1, tasks)

	// A single worker preserves input order.
	test.Equals(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunParallel(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	done := map[int]bool{}

	tasks := make([]func(), 20)
	for i := range tasks {
		i := i
		tasks[i] = func() {
			mu.Lock()
			done[i] = true
			mu.Unlock()
		}
	}

	Run(log.NewNopLogger(), "testing", 4, tasks)

	test.Equals(t, len(tasks), len(done))
}

func TestRunMoreWorkersThanTasks(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	count := 0

	tasks := make([]func(), 2)
	for i := range tasks {
		tasks[i] = func() {
			mu.Lock()
			count++
			mu.Unlock()
		}
	}

	Run(log.NewNopLogger(), "testing", 16, tasks)

	test.Equals(t, 2, count)
}

func TestRunTaskFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	completed := 0

	tasks := make([]func(), 10)
	for i := range tasks {
		i := i
		tasks[i] = func() {
			// Tasks own their failures; a failing task records its
			// error and returns instead of stopping the batch.
			if i%2 == 0 {
				return
			}

			mu.Lock()
			completed++
			mu.Unlock()
		}
	}

	Run(log.NewNopLogger(), "testing", 3, tasks)

	test.Equals(t, 5, completed)
}

func TestRunNoTasks(t *testing.T) {
	t.Parallel()

	Run(log.NewNopLogger(), "testing", 4, nil)
}
