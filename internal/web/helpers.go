package web

import (
	"bytes"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

// MoreMarker ends the excerpt of a text explicitly.
const MoreMarker = "<!--more-->"

// Excerpt returns the text before MoreMarker, or the first maxLen characters
// of text cut at the last space and followed by suffix. A cut without any
// space leaves only the suffix. Markup is stripped.
func Excerpt(text string, maxLen int, suffix string) string {
	if i := indexFold(text, MoreMarker); i >= 0 {
		return StripTags(text[:i])
	}

	text = StripTags(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	n := maxLen - len([]rune(suffix))
	if n < 0 {
		n = 0
	}
	cut := string(runes[:n])
	i := strings.LastIndex(cut, " ")
	if i < 0 {
		return suffix
	}
	return cut[:i] + suffix
}

func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// StripTags drops every tag and comment from s, keeping the text.
func StripTags(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

// Markdown renders GitHub flavoured markdown. Raw HTML in the source is
// omitted from the output.
func Markdown(text string) (template.HTML, error) {
	mdOnce.Do(func() {
		md = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// QueryString merges add into current, drops the remove keys and encodes
// the result. current is not modified.
func QueryString(current url.Values, add map[string]string, remove ...string) string {
	q := url.Values{}
	for k, v := range current {
		q[k] = append([]string(nil), v...)
	}
	for k, v := range add {
		q.Set(k, v)
	}
	for _, k := range remove {
		q.Del(k)
	}
	return q.Encode()
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("Jan 2, 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006")
	default:
		return ""
	}
}

// FuncMap returns the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"excerpt":  Excerpt,
		"markdown": Markdown,
		"date":     formatDate,
		"pageQuery": func(current url.Values, page int) template.URL {
			return template.URL("?" + QueryString(current, map[string]string{"page": strconv.Itoa(page)}))
		},
	}
}
