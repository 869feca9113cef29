package refscan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bloglite/assetkit/pkg/refscan"
)

func keys(refs map[string]struct{}) []string {
	out := make([]string, 0, len(refs))
	for k := range refs {
		out = append(out, k)
	}
	return out
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("markdown image", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`intro ![cat pic](/static/uploads/cat.png) outro`)
		assert.ElementsMatch(t, []string{"/static/uploads/cat.png"}, keys(refs))
	})

	t.Run("markdown image with title", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`![cat](/static/uploads/cat.png "a cat")`)
		assert.Contains(t, refs, "/static/uploads/cat.png")
	})

	t.Run("markdown link", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`see [the report](/static/uploads/report.pdf) here`)
		assert.Contains(t, refs, "/static/uploads/report.pdf")
	})

	t.Run("html img tag", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`<p><img class="wide" src="/static/compressed/hero.jpg" alt=""></p>`)
		assert.Contains(t, refs, "/static/compressed/hero.jpg")
	})

	t.Run("html anchor tag", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`<a href='/static/uploads/slides.pdf'>slides</a>`)
		assert.Contains(t, refs, "/static/uploads/slides.pdf")
	})

	t.Run("bare path", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract("the file lives at /static/uploads/data.zip on this host")
		assert.Contains(t, refs, "/static/uploads/data.zip")
	})

	t.Run("bare path inside code span is skipped", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract("run `/static/uploads/script.sh` manually")
		assert.NotContains(t, refs, "/static/uploads/script.sh")
	})

	t.Run("query string and fragment are stripped", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`![x](/static/uploads/a.png?v=3#top)`)
		assert.Contains(t, refs, "/static/uploads/a.png")
	})

	t.Run("percent-encoded path is decoded", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`![x](/static/uploads/my%20file.png)`)
		assert.Contains(t, refs, "/static/uploads/my file.png")
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		t.Parallel()
		refs := refscan.Extract(`![a](/static/uploads/a.png) and again /static/uploads/a.png`)
		assert.ElementsMatch(t, []string{"/static/uploads/a.png"}, keys(refs))
	})

	t.Run("mixed document", func(t *testing.T) {
		t.Parallel()
		text := `# Post

![cover](/static/compressed/cover.jpg)

Some prose with a [download](/static/uploads/archive.zip "the archive").

<img src="/static/uploads/inline.gif">
<a href="/static/uploads/paper.pdf">paper</a>

Plain mention: /static/uploads/extra.png.
Not ours: https://cdn.example.com/static-other/thing.png
`
		refs := refscan.Extract(text)
		assert.ElementsMatch(t, []string{
			"/static/compressed/cover.jpg",
			"/static/uploads/archive.zip",
			"/static/uploads/inline.gif",
			"/static/uploads/paper.pdf",
			"/static/uploads/extra.png.",
		}, keys(refs))
	})

	t.Run("no references", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, refscan.Extract("nothing to see here"))
	})
}
