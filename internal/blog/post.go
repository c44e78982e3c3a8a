// Package blog holds the domain records served by the web app.
package blog

import (
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/celerix-dev/celerix-web/pkg/entity"
)

type Post struct {
	entity.Base

	Title         string
	Slug          string
	Body          string
	PublishedDate *time.Time
}

var Posts = entity.Register("posts", func() *Post { return &Post{} },
	entity.Value("title", func(p *Post) *string { return &p.Title }),
	entity.Value("slug", func(p *Post) *string { return &p.Slug }),
	entity.Value("body", func(p *Post) *string { return &p.Body }),
	entity.NullTime("publishedDate", func(p *Post) **time.Time { return &p.PublishedDate }),
)

func NewPost(data entity.Data) (*Post, error) {
	return Posts.New(data)
}

// PreProcess derives the slug from the title when data carries no slug. An
// existing slug survives a title change unless data clears it explicitly.
func (p *Post) PreProcess(data entity.Data) entity.Data {
	title, ok := data["title"].(string)
	if !ok {
		return data
	}
	raw, given := data["slug"]
	if slug, _ := raw.(string); slug != "" {
		return data
	}
	if given || p.Slug == "" {
		data["slug"] = Slugify(title)
	}
	return data
}

func (p *Post) Set(data entity.Data) (*Post, error) {
	return Posts.Set(p, data)
}

// IsPublished reports whether the post has a publish date at or before now.
func (p *Post) IsPublished(now time.Time) bool {
	return p.PublishedDate != nil && !p.PublishedDate.After(now)
}

// Published keeps the posts visible at now, newest first.
func Published(posts []*Post, now time.Time) []*Post {
	out := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if p.IsPublished(now) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b *Post) int {
		return b.PublishedDate.Compare(*a.PublishedDate)
	})
	return out
}

// Slugify lowercases s and joins its letter and digit runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
