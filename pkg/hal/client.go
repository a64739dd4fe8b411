package hal

import (
	"context"
	"io"
	"time"

	"github.com/cuemby/switchorch/pkg/log"
	"github.com/cuemby/switchorch/pkg/metrics"
	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/sony/gobreaker"
)

// BreakerClient wraps a Client with a circuit breaker so a HAL that has
// started failing every call (a crashed syncd, a wedged driver) is not
// hammered by every orch's sweep in lockstep. Once tripped, calls fail
// fast with the breaker's own error until its cooldown elapses and a
// trial call succeeds.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with a circuit breaker named name.
func NewBreakerClient(name string, inner Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			metrics.HALCircuitState.Set(float64(to))
			log.WithComponent("hal").Warn("circuit breaker " + breakerName + " " + from.String() + " -> " + to.String())
		},
	}
	return &BreakerClient{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func runBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

type createResult struct {
	oid    string
	status taskstatus.HALStatus
}

func (c *BreakerClient) Create(ctx context.Context, objType ObjectType, key string, attrs []Attr) (string, taskstatus.HALStatus, error) {
	res, err := runBreaker(c.cb, func() (createResult, error) {
		oid, status, err := c.inner.Create(ctx, objType, key, attrs)
		return createResult{oid: oid, status: status}, err
	})
	if err != nil {
		return "", taskstatus.HALFailure, err
	}
	return res.oid, res.status, nil
}

func (c *BreakerClient) Remove(ctx context.Context, objType ObjectType, oid string) (taskstatus.HALStatus, error) {
	status, err := runBreaker(c.cb, func() (taskstatus.HALStatus, error) {
		return c.inner.Remove(ctx, objType, oid)
	})
	if err != nil {
		return taskstatus.HALFailure, err
	}
	return status, nil
}

func (c *BreakerClient) Set(ctx context.Context, objType ObjectType, oid string, attr Attr) (taskstatus.HALStatus, error) {
	status, err := runBreaker(c.cb, func() (taskstatus.HALStatus, error) {
		return c.inner.Set(ctx, objType, oid, attr)
	})
	if err != nil {
		return taskstatus.HALFailure, err
	}
	return status, nil
}

func (c *BreakerClient) Get(ctx context.Context, objType ObjectType, oid string) ([]Attr, error) {
	return runBreaker(c.cb, func() ([]Attr, error) {
		return c.inner.Get(ctx, objType, oid)
	})
}

type lookupResult struct {
	oid   string
	found bool
}

func (c *BreakerClient) Lookup(ctx context.Context, objType ObjectType, key string) (string, bool, error) {
	res, err := runBreaker(c.cb, func() (lookupResult, error) {
		oid, found, err := c.inner.Lookup(ctx, objType, key)
		return lookupResult{oid: oid, found: found}, err
	})
	if err != nil {
		return "", false, err
	}
	return res.oid, res.found, nil
}

func (c *BreakerClient) BulkCreate(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error) {
	return runBreaker(c.cb, func() ([]BulkResult, error) {
		return c.inner.BulkCreate(ctx, objType, entries)
	})
}

func (c *BreakerClient) BulkRemove(ctx context.Context, objType ObjectType, oids []string) ([]BulkResult, error) {
	return runBreaker(c.cb, func() ([]BulkResult, error) {
		return c.inner.BulkRemove(ctx, objType, oids)
	})
}

func (c *BreakerClient) BulkSet(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error) {
	return runBreaker(c.cb, func() ([]BulkResult, error) {
		return c.inner.BulkSet(ctx, objType, entries)
	})
}

func (c *BreakerClient) SwitchAttribute(ctx context.Context, attr Attr) (taskstatus.HALStatus, error) {
	status, err := runBreaker(c.cb, func() (taskstatus.HALStatus, error) {
		return c.inner.SwitchAttribute(ctx, attr)
	})
	if err != nil {
		return taskstatus.HALFailure, err
	}
	return status, nil
}

func (c *BreakerClient) FlushPipeline(ctx context.Context) error {
	_, err := runBreaker(c.cb, func() (struct{}, error) {
		return struct{}{}, c.inner.FlushPipeline(ctx)
	})
	return err
}

func (c *BreakerClient) Dump(w io.Writer) error {
	_, err := runBreaker(c.cb, func() (struct{}, error) {
		return struct{}{}, c.inner.Dump(w)
	})
	return err
}
