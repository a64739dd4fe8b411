package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/switchorch/pkg/kofv"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsLineWithFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")
	r, err := New(path, "test")
	require.NoError(t, err)
	defer r.Close()

	fv := kofv.NewFieldValues()
	fv.Set("admin_status", "up")
	fv.Set("mtu", "9100")
	r.Record(Line{Table: "VRF_TABLE", Key: "Vrf_red", Op: kofv.OpSet, Fields: fv})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2) // start marker + one record

	last := lines[len(lines)-1]
	require.Contains(t, last, "VRF_TABLE:Vrf_red|SET")
	require.Contains(t, last, "admin_status:up")
	require.Contains(t, last, "mtu:9100")
}

func TestRotateReopensSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")
	r, err := New(path, "test")
	require.NoError(t, err)
	defer r.Close()

	r.Record(Line{Table: "T", Key: "k1", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, r.Rotate())

	r.Record(Line{Table: "T", Key: "k2", Op: kofv.OpSet, Fields: kofv.NewFieldValues()})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "T:k2|SET")
}

func TestRecordWithNoFieldsWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rec")
	r, err := New(path, "test")
	require.NoError(t, err)
	defer r.Close()

	r.Record(Line{Table: "T", Key: "k1", Op: kofv.OpDel, Fields: nil})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "T:k1|DEL")
}
