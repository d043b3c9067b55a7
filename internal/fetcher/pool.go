package fetcher

import (
	"context"
	"sync"

	"flickrgeo/pkg/geo"
	"flickrgeo/pkg/logger"
)

// Job is one grid cell to fetch
type Job struct {
	Cell int
	BBox geo.BoundingBox
}

// Result is the outcome of fetching one cell
type Result struct {
	Cell    int
	Records int
	Err     error
}

// FetchFunc fetches all records of one cell and returns how many it wrote
type FetchFunc func(ctx context.Context, job Job) (int, error)

// Pool fans grid cells out over a fixed number of workers. With one worker
// (the default) cells are fetched sequentially in order, which keeps the
// request pattern gentle; more workers trade politeness for speed.
type Pool struct {
	workers int
	fetch   FetchFunc
	logger  logger.Logger
}

// NewPool creates a pool. Workers below one are clamped to one.
func NewPool(workers int, fetch FetchFunc, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		fetch:   fetch,
		logger:  log,
	}
}

// Run fetches all jobs and streams one Result per job. The results channel
// is closed when every job has finished or been abandoned due to
// cancellation. Cancelled jobs report ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job) <-chan Result {
	jobQueue := make(chan Job)
	results := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobQueue, results, &wg)
	}

	go func() {
		defer close(jobQueue)
		for _, job := range jobs {
			select {
			case jobQueue <- job:
			case <-ctx.Done():
				results <- Result{Cell: job.Cell, Err: ctx.Err()}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) worker(ctx context.Context, id int, jobs <-chan Job, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- Result{Cell: job.Cell, Err: ctx.Err()}
			continue
		default:
		}

		p.logger.DebugWithFields("worker picked up cell", map[string]interface{}{
			"worker": id,
			"cell":   job.Cell,
			"bbox":   job.BBox.String(),
		})

		records, err := p.fetch(ctx, job)
		results <- Result{Cell: job.Cell, Records: records, Err: err}
	}
}
