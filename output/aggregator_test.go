package output_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"critcss/output"
)

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAggregator_Layout(t *testing.T) {
	root := t.TempDir()
	a := output.NewAggregator(zaptest.NewLogger(t))

	a.Add(output.Artifact{Device: "mobile", Kind: output.KindCritical, ResourceKey: "https://example.com/a.css", FileName: "a.css", Text: "/* 1 */\n"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindNonCritical, ResourceKey: "https://example.com/a.css", FileName: "a.css", Text: ".x{}\n"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindCritical, ResourceKey: "https://example.com/b.css", FileName: "b.css", Text: "/* 2 */\n"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindNonCritical, ResourceKey: "https://example.com/a.css", FileName: "a.css", Text: ".y{}\n"})
	a.Add(output.Artifact{Device: "desktop", Kind: output.KindCritical})
	require.Equal(t, 3, a.Len())

	paths, err := a.Flush(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "mobile", "critical.css"),
		filepath.Join(root, "mobile", "non-critical", "a.css"),
		filepath.Join(root, "desktop", "critical.css"),
	}, paths)

	// processing order, not sorted
	assert.Equal(t, "/* 1 */\n/* 2 */\n", read(t, paths[0]))
	assert.Equal(t, ".x{}\n.y{}\n", read(t, paths[1]))
	// critical file is written even when empty
	assert.Equal(t, "", read(t, paths[2]))

	// idempotent
	_, err = a.Flush(root)
	require.NoError(t, err)
}

func TestAggregator_UsedUnused(t *testing.T) {
	root := t.TempDir()
	a := output.NewAggregator(zaptest.NewLogger(t))

	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "https://example.com/a.css", FileName: "a.css", Text: ""})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUnused, ResourceKey: "https://example.com/a.css", FileName: "a.css", Text: ".b{color:blue}"})

	_, err := a.Flush(root)
	require.NoError(t, err)
	assert.Equal(t, "", read(t, filepath.Join(root, "mobile", "used", "a.css")))
	assert.Equal(t, ".b{color:blue}", read(t, filepath.Join(root, "mobile", "unused", "a.css")))
}

func TestAggregator_NameCollisions(t *testing.T) {
	root := t.TempDir()
	a := output.NewAggregator(zaptest.NewLogger(t))

	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "https://example.com/v1/style.css", FileName: "style.css", Text: "1"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "https://cdn.example.com/style.css", FileName: "style.css", Text: "2"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "https://example.com/v1/style.css", FileName: "style.css", Text: "3"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUnused, ResourceKey: "https://cdn.example.com/style.css", FileName: "style.css", Text: "4"})
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "https://example.com/#inline", FileName: "inline", Text: "5"})

	paths, err := a.Flush(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "mobile", "used", "style.css"),
		filepath.Join(root, "mobile", "used", "style-2.css"),
		filepath.Join(root, "mobile", "unused", "style.css"),
		filepath.Join(root, "mobile", "used", "inline.css"),
	}, paths)
	assert.Equal(t, "13", read(t, paths[0]))
	assert.Equal(t, "2", read(t, paths[1]))
}

func TestAggregator_Transliterate(t *testing.T) {
	root := t.TempDir()
	a := output.NewAggregator(zaptest.NewLogger(t))
	a.Transliterate = true

	a.Add(output.Artifact{Device: "mobile", Kind: output.KindUsed, ResourceKey: "k", FileName: "Main Theme.css"})
	paths, err := a.Flush(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "mobile", "used", "main-theme.css"), paths[0])
}

func TestAggregator_WriteError(t *testing.T) {
	root := t.TempDir()
	// regular file where device directory is expected
	require.NoError(t, os.WriteFile(filepath.Join(root, "mobile"), nil, 0644))

	a := output.NewAggregator(zaptest.NewLogger(t))
	a.Add(output.Artifact{Device: "mobile", Kind: output.KindCritical, Text: ".a{}"})

	_, err := a.Flush(root)
	var we *output.WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, filepath.Join(root, "mobile"), we.Path)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "critical", output.KindCritical.String())
	assert.Equal(t, "non-critical", output.KindNonCritical.String())
	assert.Equal(t, "used", output.KindUsed.String())
	assert.Equal(t, "unused", output.KindUnused.String())
	assert.Equal(t, "kind(7)", output.Kind(7).String())
}
