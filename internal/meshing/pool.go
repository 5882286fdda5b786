package meshing

import (
	"context"
	"errors"
	"sync"

	"stationvox/internal/world"
)

var errRebuilderClosed = errors.New("meshing: rebuilder shut down")

// RebuildJob represents a rebuild request
type RebuildJob struct {
	Chunk *world.Chunk
	// Results receives the outcome when the job is done. May be nil.
	Results chan<- Result
	// Lit skips propagation for a chunk whose light is already current.
	Lit bool
}

// Rebuilder runs chunk rebuilds on worker goroutines. A job always runs to
// completion once started.
//
// Rebuilds read across neighbour links, so with more than one worker the
// caller must not queue two adjacent chunks while either one is changing.
type Rebuilder struct {
	jobQueue chan RebuildJob
	workers  int
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRebuilder starts a pool of workers sharing a queue of queueSize jobs.
func NewRebuilder(workers, queueSize int, opts Options) *Rebuilder {
	ctx, cancel := context.WithCancel(context.Background())
	workers = max(workers, 1)

	r := &Rebuilder{
		jobQueue: make(chan RebuildJob, queueSize),
		workers:  workers,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	return r
}

// Submit queues a job without blocking.
// Returns true if job was submitted successfully, false if queue is full
func (r *Rebuilder) Submit(job RebuildJob) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	select {
	case r.jobQueue <- job:
		return true
	default:
		return false
	}
}

// SubmitBlocking waits for room in the queue. It returns false if the
// rebuilder shuts down first.
func (r *Rebuilder) SubmitBlocking(job RebuildJob) bool {
	select {
	case r.jobQueue <- job:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Rebuilder) worker(id int) {
	defer r.wg.Done()

	for {
		select {
		case job := <-r.jobQueue:
			var res Result
			if job.Lit {
				res = assemble(job.Chunk, r.opts)
			} else {
				res = Rebuild(job.Chunk, r.opts)
			}
			if job.Results == nil {
				continue
			}
			select {
			case job.Results <- res:
			case <-r.ctx.Done():
				return
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers after their current job. Queued jobs that have
// not started are discarded.
func (r *Rebuilder) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

// QueueLength returns the current number of jobs waiting in the queue
func (r *Rebuilder) QueueLength() int {
	return len(r.jobQueue)
}

// Workers returns the number of worker goroutines.
func (r *Rebuilder) Workers() int {
	return r.workers
}

// RebuildEntity rebuilds every dirty chunk of e on the workers. All chunks of
// a pass are relit first, then assembled in eight batches by coordinate
// parity so that no two neighbours are ever built at the same time; each
// batch is applied in coordinate order once it has finished.
func (r *Rebuilder) RebuildEntity(e *world.Entity) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for pass := 0; pass <= e.Len(); pass++ {
		dirty := e.DirtyChunks()
		if len(dirty) == 0 {
			break
		}
		dirty = relightAll(dirty)
		var batches [8][]*world.Chunk
		for _, c := range dirty {
			p := (c.Coord.X&1)<<2 | (c.Coord.Y&1)<<1 | c.Coord.Z&1
			batches[p] = append(batches[p], c)
		}
		for _, batch := range batches {
			if len(batch) == 0 {
				continue
			}
			out := make(chan Result, len(batch))
			for _, c := range batch {
				if !r.SubmitBlocking(RebuildJob{Chunk: c, Results: out, Lit: true}) {
					return results, errors.Join(append(errs, errRebuilderClosed)...)
				}
			}
			byCoord := make(map[world.Coord]Result, len(batch))
			for range batch {
				select {
				case res := <-out:
					byCoord[res.Coord] = res
				case <-r.ctx.Done():
					return results, errors.Join(append(errs, errRebuilderClosed)...)
				}
			}
			for _, c := range batch {
				res := byCoord[c.Coord]
				if res.Err != nil {
					errs = append(errs, res.Err)
					continue
				}
				Apply(e, c, res)
				results = append(results, res)
			}
		}
	}
	return results, errors.Join(errs...)
}
