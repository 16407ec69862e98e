package queue

import (
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the pending buffer is full.
	ErrQueueFull = errors.New("queue: pending buffer full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("queue: pool stopped")
)

// PoolConfig contains the configuration for the worker pool.
type PoolConfig struct {
	Workers   int           // number of workers
	QueueSize int           // size of the pending buffer
	StopWait  time.Duration // max time Stop waits for in-flight tasks
}

func (c *PoolConfig) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.StopWait <= 0 {
		c.StopWait = 10 * time.Second
	}
}
