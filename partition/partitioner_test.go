package partition_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"critcss/partition"
)

func TestIndex(t *testing.T) {
	x := partition.NewIndex()

	assert.True(t, x.Critical("mobile", ".a {}"))
	assert.False(t, x.Critical("mobile", ".a {}"))
	// devices never share fingerprints
	assert.True(t, x.Critical("desktop", ".a {}"))

	assert.True(t, x.NonCritical("mobile", "a.css", ".a {}"))
	assert.False(t, x.NonCritical("mobile", "a.css", ".a {}"))
	assert.True(t, x.NonCritical("mobile", "b.css", ".a {}"))
	assert.True(t, x.NonCritical("desktop", "a.css", ".a {}"))
}

func TestIndex_Concurrent(t *testing.T) {
	x := partition.NewIndex()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if x.Critical("mobile", ".shared {}") {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, first)
}

func TestIndex_String(t *testing.T) {
	x := partition.NewIndex()
	x.Critical("mobile", ".a {}")
	x.NonCritical("mobile", "b10.css", ".b {}")
	x.NonCritical("mobile", "b2.css", ".b {}")
	x.NonCritical("desktop", "a.css", ".a {}")

	want := `Device "desktop" critical[0]
  Resource "a.css" non-critical[1]
Device "mobile" critical[1]
  Resource "b2.css" non-critical[1]
  Resource "b10.css" non-critical[1]
`
	assert.Equal(t, want, x.String())
}

func TestPartitioner_Critical(t *testing.T) {
	p := partition.NewPartitioner(partition.NewIndex(), zaptest.NewLogger(t))

	text := ".a {\n  color: red;\n}\n\n.b {\n  color: blue;\n}"
	got := p.Critical("mobile", partition.Source{FileName: "a.css", PageURL: "https://example.com/"}, text)
	assert.Equal(t, "/* From a.css on https://example.com/ */\n.a {\n  color: red;\n}\n\n.b {\n  color: blue;\n}\n", got)

	// fragment appended twice appears once
	got = p.Critical("mobile", partition.Source{FileName: "b.css", PageURL: "https://example.com/about"}, ".b {\n  color: blue;\n}\n\n.c {\n  color: green;\n}")
	assert.Equal(t, "/* From b.css on https://example.com/about */\n.c {\n  color: green;\n}\n", got)

	// nothing new
	assert.Empty(t, p.Critical("mobile", partition.Source{FileName: "a.css", PageURL: "https://example.com/about"}, text))
	assert.Empty(t, p.Critical("mobile", partition.Source{FileName: "a.css", PageURL: "https://example.com/"}, "  \n\n "))

	// other device starts from scratch
	assert.NotEmpty(t, p.Critical("desktop", partition.Source{FileName: "a.css", PageURL: "https://example.com/"}, text))
}

func TestPartitioner_NonCritical(t *testing.T) {
	p := partition.NewPartitioner(partition.NewIndex(), zaptest.NewLogger(t))
	frag := ".x {\n  margin: 0;\n}"

	home := partition.Source{FileName: "a.css", PageURL: "https://example.com/"}
	about := partition.Source{FileName: "a.css", PageURL: "https://example.com/about"}

	got := p.NonCritical("mobile", "https://example.com/a.css", home, frag)
	assert.Equal(t, "/* From https://example.com/ */\n.x {\n  margin: 0;\n}\n", got)

	// same resource on another page
	assert.Empty(t, p.NonCritical("mobile", "https://example.com/a.css", about, frag))

	// another resource is independent
	got = p.NonCritical("mobile", "https://example.com/b.css", partition.Source{FileName: "b.css", PageURL: "https://example.com/about"}, frag)
	assert.Equal(t, "/* From https://example.com/about */\n.x {\n  margin: 0;\n}\n", got)
}

func TestPartitioner_FragmentsTrimmed(t *testing.T) {
	p := partition.NewPartitioner(partition.NewIndex(), zaptest.NewLogger(t))
	src := partition.Source{FileName: "a.css", PageURL: "p"}

	got := p.Critical("mobile", src, "  @charset \"utf-8\";\n.a{color:red}  ")
	require.NotEmpty(t, got)
	assert.Equal(t, "/* From a.css on p */\n@charset \"utf-8\";\n\n.a{color:red}\n", got)
	assert.Empty(t, p.Critical("mobile", src, ".a{color:red}\n\n@charset \"utf-8\";"))
}
