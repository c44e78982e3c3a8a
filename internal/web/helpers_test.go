package web

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		max    int
		suffix string
		want   string
	}{
		{"short text untouched", "Hello <b>world</b>", 300, "...", "Hello world"},
		{"cut at last space", "The quick brown fox jumps", 16, "...", "The quick..."},
		{"more marker", "<p>Intro</p><!--more--><p>Rest</p>", 3, "...", "Intro"},
		{"more marker any case", "Lead <!--MORE--> tail", 300, "...", "Lead "},
		{"no space leaves suffix", "abcdefghij", 6, "..", ".."},
		{"long first word", "Supercalifragilistic expialidocious", 12, "...", "..."},
		{"multibyte", "héllo wörld again", 12, "…", "héllo…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.text, tt.max, tt.suffix))
		})
	}
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "a b c", StripTags(`<div class="x">a <em>b</em> <!-- hidden -->c</div>`))
	assert.Equal(t, "plain", StripTags("plain"))
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>x</script>")
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<table>")
	assert.NotContains(t, html, "<script>")
}

func TestQueryString(t *testing.T) {
	current := url.Values{"page": {"2"}, "tag": {"go"}, "q": {"x y"}}

	got := QueryString(current, map[string]string{"page": "3"}, "q")
	assert.Equal(t, "page=3&tag=go", got)
	assert.Equal(t, []string{"2"}, current["page"])

	assert.Equal(t, "a=1", QueryString(nil, map[string]string{"a": "1"}))
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "Mar 9, 2024", formatDate(ts))
	assert.Equal(t, "Mar 9, 2024", formatDate(&ts))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))
	assert.Equal(t, "", formatDate("nope"))
}

func TestNewPage(t *testing.T) {
	p := NewPage(25, 10, "2")
	assert.Equal(t, Page{Number: 2, Size: 10, Total: 25, Pages: 3}, p)
	assert.Equal(t, 10, p.Offset())
	assert.Equal(t, 20, p.End())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	last := NewPage(25, 10, "99")
	assert.Equal(t, 3, last.Number)
	assert.Equal(t, 25, last.End())
	assert.False(t, last.HasNext())

	for _, raw := range []string{"", "abc", "-1", "0"} {
		assert.Equal(t, 1, NewPage(25, 10, raw).Number, raw)
	}

	empty := NewPage(0, 10, "")
	assert.Equal(t, 1, empty.Pages)
	assert.Equal(t, 0, empty.Offset())
	assert.Equal(t, 0, empty.End())
}

func TestLoadTemplates(t *testing.T) {
	tmpl, err := LoadTemplates("")
	require.NoError(t, err)
	for _, name := range []string{"home.html", "post.html", "error.html"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}

	_, err = LoadTemplates(t.TempDir())
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "web: templates"))
}
