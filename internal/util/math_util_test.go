package util

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddUint64(t *testing.T) {
	sum, overflow, err := AddUint64()
	require.NoError(t, err)
	require.False(t, overflow)
	require.EqualValues(t, 0, sum)

	sum, overflow, err = AddUint64(1, 2, 3)
	require.NoError(t, err)
	require.False(t, overflow)
	require.EqualValues(t, 6, sum)

	_, overflow, err = AddUint64(math.MaxUint64, 1)
	require.ErrorContains(t, err, "uint64 sum overflow")
	require.True(t, overflow)
}

func TestSubUint64(t *testing.T) {
	r, err := SubUint64(10, 4)
	require.NoError(t, err)
	require.EqualValues(t, 6, r)

	_, err = SubUint64(4, 10)
	require.ErrorContains(t, err, "underflow")
}

func TestMin(t *testing.T) {
	require.Equal(t, 1, Min(1, 2))
	require.Equal(t, uint64(2), Min(uint64(3), 2))
	require.Equal(t, "a", Min("b", "a"))
}

func TestJsonFile(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
	}
	path := filepath.Join(t.TempDir(), "sub", "rec.json")
	require.False(t, FileExists(path))
	require.NoError(t, WriteJsonFile(path, &rec{Name: "x"}))
	require.True(t, FileExists(path))
	res, err := ReadJsonFile(path, &rec{})
	require.NoError(t, err)
	require.Equal(t, "x", res.Name)
}
