package hal

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/stretchr/testify/require"
)

type alwaysFailClient struct{}

func (alwaysFailClient) Create(ctx context.Context, objType ObjectType, key string, attrs []Attr) (string, taskstatus.HALStatus, error) {
	return "", taskstatus.HALFailure, errors.New("syncd unreachable")
}
func (alwaysFailClient) Remove(ctx context.Context, objType ObjectType, oid string) (taskstatus.HALStatus, error) {
	return taskstatus.HALFailure, errors.New("syncd unreachable")
}
func (alwaysFailClient) Set(ctx context.Context, objType ObjectType, oid string, attr Attr) (taskstatus.HALStatus, error) {
	return taskstatus.HALFailure, errors.New("syncd unreachable")
}
func (alwaysFailClient) Get(ctx context.Context, objType ObjectType, oid string) ([]Attr, error) {
	return nil, errors.New("syncd unreachable")
}
func (alwaysFailClient) Lookup(ctx context.Context, objType ObjectType, key string) (string, bool, error) {
	return "", false, errors.New("syncd unreachable")
}
func (alwaysFailClient) BulkCreate(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error) {
	return nil, errors.New("syncd unreachable")
}
func (alwaysFailClient) BulkRemove(ctx context.Context, objType ObjectType, oids []string) ([]BulkResult, error) {
	return nil, errors.New("syncd unreachable")
}
func (alwaysFailClient) BulkSet(ctx context.Context, objType ObjectType, entries []BulkEntry) ([]BulkResult, error) {
	return nil, errors.New("syncd unreachable")
}
func (alwaysFailClient) SwitchAttribute(ctx context.Context, attr Attr) (taskstatus.HALStatus, error) {
	return taskstatus.HALFailure, errors.New("syncd unreachable")
}
func (alwaysFailClient) FlushPipeline(ctx context.Context) error { return errors.New("syncd unreachable") }
func (alwaysFailClient) Dump(w io.Writer) error {
	return errors.New("syncd unreachable")
}

func TestBreakerClientPassesThroughSingleFailure(t *testing.T) {
	bc := NewBreakerClient("test", alwaysFailClient{})
	_, status, err := bc.Create(context.Background(), "VRF", "Vrf_red", nil)
	require.Error(t, err)
	require.Equal(t, taskstatus.HALFailure, status)
}

func TestBreakerClientTripsAfterConsecutiveFailures(t *testing.T) {
	bc := NewBreakerClient("test", alwaysFailClient{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := bc.Create(ctx, "VRF", "Vrf_red", nil)
		require.Error(t, err)
	}

	_, _, err := bc.Create(ctx, "VRF", "Vrf_red", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "circuit breaker is open")
}
