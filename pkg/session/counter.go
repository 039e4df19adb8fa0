package session

import (
	"context"
	"sync"
	"time"
)

// arrivalCounter tracks in-flight Persist calls against one storage session.
// register increments it at persist entry and returns a func to decrement at
// exit; awaitZero/awaitZeroBounded let Commit/Rollback wait for the count to
// drain. Built on sync.Mutex+sync.Cond rather than sync.WaitGroup, which has
// no bounded or cancellable wait — the rollback drain needs both.
type arrivalCounter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newArrivalCounter() *arrivalCounter {
	c := &arrivalCounter{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// register records one arrival and returns a function the caller must defer
// to record its departure.
func (c *arrivalCounter) register() func() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.count--
			if c.count == 0 {
				c.cond.Broadcast()
			}
			c.mu.Unlock()
		})
	}
}

// awaitZero blocks until the counter reaches zero or ctx is cancelled.
func (c *arrivalCounter) awaitZero(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		for c.count > 0 {
			c.cond.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitZeroBounded blocks until the counter reaches zero, returning false if
// timeout elapses first.
func (c *arrivalCounter) awaitZeroBounded(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.awaitZero(ctx) == nil
}

func (c *arrivalCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
