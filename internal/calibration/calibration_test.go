package calibration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToZero(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "calib.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, m.OffsetDeg())
}

func TestSet_PersistsAndReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.json")
	m, err := New(path)
	require.NoError(t, err)

	require.NoError(t, m.Set(30))
	assert.Equal(t, 30, m.OffsetDeg())

	reopened, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 30, reopened.OffsetDeg())
}

func TestSet_RejectsOutOfBounds(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "calib.json"))
	require.NoError(t, err)

	require.NoError(t, m.Set(90))
	err = m.Set(181)
	require.Error(t, err)
	assert.Equal(t, 90, m.OffsetDeg(), "rejected write must not change in-memory state")

	err = m.Set(-181)
	require.Error(t, err)
	assert.Equal(t, 90, m.OffsetDeg())
}

func TestSet_BoundaryValuesAccepted(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "calib.json"))
	require.NoError(t, err)
	require.NoError(t, m.Set(180))
	assert.Equal(t, 180, m.OffsetDeg())
	require.NoError(t, m.Set(-180))
	assert.Equal(t, -180, m.OffsetDeg())
}
