package coverage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStore_SaveLoad(t *testing.T) {
	st, err := OpenStore(filepath.Join(t.TempDir(), "capture.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer st.Close()

	_, err = st.LatestRun()
	require.ErrorIs(t, err, ErrNoCapture)

	linked := sheet("a.css", ".a{color:red}.b{color:blue}")
	inline := NewStyleResource("https://example.com/", "body{margin:0}", true, 1)
	reports := []Report{
		{Resource: linked, Device: "mobile", PageURL: "https://example.com/", Ranges: []Range{{0, 13}, {14, 20}}},
		{Resource: inline, Device: "mobile", PageURL: "https://example.com/"},
		{Resource: linked, Device: "desktop", PageURL: "https://example.com/", Ranges: []Range{{13, 27}}},
	}
	require.NoError(t, st.Save("run-1", reports))

	id, err := st.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	got, err := st.Load("run-1", "https://example.com/", "mobile")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, reports[0], got[0])
	assert.Equal(t, inline, got[1].Resource)
	assert.Empty(t, got[1].Ranges)

	got, err = st.Load("run-1", "https://example.com/", "desktop")
	require.NoError(t, err)
	assert.Equal(t, reports[2:], got)

	_, err = st.Load("run-1", "https://example.com/other", "mobile")
	assert.True(t, errors.Is(err, ErrNoCapture))
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.db")

	st, err := OpenStore(path, nil)
	require.NoError(t, err)
	res := sheet("a.css", ".a{}")
	require.NoError(t, st.Save("run-1", []Report{{Resource: res, Device: "mobile", PageURL: "p", Ranges: []Range{{0, 4}}}}))
	require.NoError(t, st.Close())

	st, err = OpenStore(path, nil)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Load("run-1", "p", "mobile")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []Range{{0, 4}}, got[0].Ranges)
}

func TestStore_LatestRun(t *testing.T) {
	st, err := OpenStore(filepath.Join(t.TempDir(), "capture.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer st.Close()

	second := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for _, run := range []struct {
		id      string
		started time.Time
	}{
		{"whole-second", second},
		{"half-second", second.Add(500 * time.Millisecond)},
	} {
		st.now = func() time.Time { return run.started }
		require.NoError(t, st.Save(run.id, nil))
	}
	id, err := st.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "half-second", id)

	// same stamp, registration order decides
	st.now = func() time.Time { return second.Add(time.Second) }
	require.NoError(t, st.Save("first", nil))
	require.NoError(t, st.Save("second", nil))
	id, err = st.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "second", id)
}
