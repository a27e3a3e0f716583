// Package pool runs transfer and checksum tasks across a bounded set of
// workers.
package pool

import (
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Run executes the given tasks with at most workers concurrent goroutines.
// With workers <= 1 tasks run sequentially in input order; otherwise tasks
// complete in arbitrary order and callers must not depend on output
// ordering. Completion progress is logged as each task finishes.
//
// Each task is responsible for handling its own failures; a failing task
// never stops the remaining ones.
func Run(l log.Logger, msg string, workers int, tasks []func()) {
	if len(tasks) == 0 {
		return
	}

	level.Info(l).Log("msg", msg, "tasks", len(tasks), "workers", workers)

	if workers <= 1 {
		for i, task := range tasks {
			task()
			level.Debug(l).Log("msg", msg, "done", i+1, "total", len(tasks))
		}

		return
	}

	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan func())
	completed := make(chan struct{}, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for task := range queue {
				task()
				completed <- struct{}{}
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			queue <- task
		}
		close(queue)
	}()

	// Results are consumed in completion order, not input order.
	for i := 0; i < len(tasks); i++ {
		<-completed
		level.Debug(l).Log("msg", msg, "done", i+1, "total", len(tasks))
	}

	wg.Wait()
}
