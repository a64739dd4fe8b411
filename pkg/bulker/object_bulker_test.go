package bulker

import (
	"context"
	"testing"

	"github.com/cuemby/switchorch/pkg/hal"
	"github.com/cuemby/switchorch/pkg/hal/fake"
	"github.com/cuemby/switchorch/pkg/taskstatus"
	"github.com/stretchr/testify/require"
)

func TestCreateObjectThenFlushAssignsOID(t *testing.T) {
	client := fake.New()
	b := NewObjectBulker("test", client, "NEXT_HOP_GROUP_MEMBER", 100)

	oid, res := b.CreateObject([]hal.Attr{{ID: "SAI_NHGM_ATTR_WEIGHT", Value: "4"}})
	require.Equal(t, taskstatus.HALNotExecuted, res.Status)
	require.Equal(t, NullOID, *oid)

	require.NoError(t, b.Flush(context.Background()))
	require.Equal(t, taskstatus.HALSuccess, res.Status)
	require.NotEqual(t, NullOID, *oid)
	require.Equal(t, 0, b.CreatingCount())
}

func TestCreateObjectFailureWritesNullOID(t *testing.T) {
	client := fake.New()
	client.NotImplTypes["NEXT_HOP_GROUP_MEMBER"] = true
	b := NewObjectBulker("test", client, "NEXT_HOP_GROUP_MEMBER", 100)

	oid, res := b.CreateObject(nil)
	require.NoError(t, b.Flush(context.Background()))

	require.Equal(t, taskstatus.HALNotImplemented, res.Status)
	require.Equal(t, NullOID, *oid)
}

func TestRemoveObjectResolvesByOID(t *testing.T) {
	client := fake.New()
	b := NewObjectBulker("test", client, "NEXT_HOP_GROUP_MEMBER", 100)

	oid, _ := b.CreateObject(nil)
	require.NoError(t, b.Flush(context.Background()))

	require.False(t, b.PendingRemoval(*oid))
	res := b.RemoveObject(*oid)
	require.True(t, b.PendingRemoval(*oid))

	require.NoError(t, b.Flush(context.Background()))
	require.Equal(t, taskstatus.HALSuccess, res.Status)
	require.Equal(t, 0, b.RemovingCount())
}

func TestObjectBulkerChunksCreatesAtMaxBulkSize(t *testing.T) {
	client := fake.New()
	b := NewObjectBulker("test", client, "NEXT_HOP_GROUP_MEMBER", 2)

	oids := make([]*string, 0, 5)
	results := make([]*Result, 0, 5)
	for i := 0; i < 5; i++ {
		oid, res := b.CreateObject(nil)
		oids = append(oids, oid)
		results = append(results, res)
	}

	require.NoError(t, b.Flush(context.Background()))

	seen := make(map[string]bool)
	for i, r := range results {
		require.Equal(t, taskstatus.HALSuccess, r.Status)
		require.NotEqual(t, NullOID, *oids[i])
		require.False(t, seen[*oids[i]], "each created object should get a distinct oid")
		seen[*oids[i]] = true
	}
}

func TestObjectBulkerClearDropsStagedWorkWithoutFlushing(t *testing.T) {
	client := fake.New()
	b := NewObjectBulker("test", client, "NEXT_HOP_GROUP_MEMBER", 100)

	b.CreateObject(nil)
	b.Clear()
	require.Equal(t, 0, b.CreatingCount())
	require.NoError(t, b.Flush(context.Background()))
	require.Empty(t, client.Calls)
}
