package tasks

import (
	"context"
	"log/slog"
	"sync"
)

const DefaultWorkerCount = 5

// Pool runs a batch of tasks on a fixed number of workers and waits for all
// of them. A failing task does not affect the others.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = DefaultWorkerCount
	}
	return &Pool{workerCount: workerCount}
}

// Run executes tasks and returns their errors, indexed like tasks.
func (p *Pool) Run(ctx context.Context, tasks []TaskInterface) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	type job struct {
		index int
		task  TaskInterface
	}

	taskQueue := make(chan job, len(tasks))
	for i, task := range tasks {
		taskQueue <- job{index: i, task: task}
	}
	close(taskQueue)

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range taskQueue {
				errs[j.index] = p.executeTask(ctx, workerID, j.task)
			}
		}(i)
	}
	wg.Wait()

	return errs
}

func (p *Pool) executeTask(ctx context.Context, workerID int, task TaskInterface) error {
	task.Start()

	err := task.Execute(ctx)
	if err != nil {
		slog.Error("Worker task execution failed",
			"worker_id", workerID,
			"type", string(task.GetType()),
			"source", task.GetSourceName(),
			"id", task.GetID(),
			"error", err)
	}
	return err
}
