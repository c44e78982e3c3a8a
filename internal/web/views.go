// Package web renders the public HTML pages.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-web/internal/blog"
	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

//go:embed templates/*.html
var embedded embed.FS

// ExcerptLength is the default excerpt size on list pages.
const ExcerptLength = 300

// LoadTemplates parses the *.html files under root, or the embedded set
// when root is empty.
func LoadTemplates(root string) (*template.Template, error) {
	t := template.New("").Funcs(FuncMap())
	if root == "" {
		return t.ParseFS(embedded, "templates/*.html")
	}
	parsed, err := t.ParseGlob(filepath.Join(root, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("web: templates in %s: %w", root, err)
	}
	return parsed, nil
}

type Views struct {
	store   sdk.Store
	tmpl    *template.Template
	perPage int
	logger  *slog.Logger
	now     func() time.Time
}

func New(store sdk.Store, tmpl *template.Template, perPage int, logger *slog.Logger) *Views {
	if logger == nil {
		logger = slog.Default()
	}
	if perPage <= 0 {
		perPage = 10
	}
	return &Views{
		store:   store,
		tmpl:    tmpl,
		perPage: perPage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Mount installs the templates and the page routes on r.
func (v *Views) Mount(r *gin.Engine) {
	r.SetHTMLTemplate(v.tmpl)
	r.GET("/", v.Home)
	r.GET("/posts/:slug", v.Post)
}

// Home lists the published posts, newest first, one page at a time.
func (v *Views) Home(c *gin.Context) {
	posts, err := sdk.All(v.store, blog.Posts)
	if err != nil {
		v.fail(c, err)
		return
	}
	sponsors, err := sdk.All(v.store, blog.Sponsors)
	if err != nil {
		v.fail(c, err)
		return
	}

	published := blog.Published(posts, v.now())
	page := NewPage(len(published), v.perPage, c.Query("page"))

	c.HTML(http.StatusOK, "home.html", gin.H{
		"Posts":    published[page.Offset():page.End()],
		"Page":     page,
		"Query":    c.Request.URL.Query(),
		"Sponsors": sponsors,
		"Excerpt":  ExcerptLength,
	})
}

// Post renders a single published post by slug.
func (v *Views) Post(c *gin.Context) {
	posts, err := sdk.All(v.store, blog.Posts)
	if err != nil {
		v.fail(c, err)
		return
	}
	for _, p := range blog.Published(posts, v.now()) {
		if p.Slug == c.Param("slug") {
			c.HTML(http.StatusOK, "post.html", gin.H{"Title": p.Title, "Post": p})
			return
		}
	}
	c.HTML(http.StatusNotFound, "error.html", gin.H{
		"Status":  http.StatusNotFound,
		"Message": "Post not found",
	})
}

func (v *Views) fail(c *gin.Context, err error) {
	v.logger.Error("web.render_failed", "path", c.Request.URL.Path, "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, sdk.ErrTableNotFound) {
		status = http.StatusNotFound
	}
	c.HTML(status, "error.html", gin.H{
		"Status":  status,
		"Message": http.StatusText(status),
	})
}

// Page describes one page of a list.
type Page struct {
	Number int
	Size   int
	Total  int
	Pages  int
}

// NewPage parses the requested page number and clamps it to the range of
// available pages. An empty list still has one page.
func NewPage(total, size int, raw string) Page {
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}
	return Page{Number: n, Size: size, Total: total, Pages: pages}
}

func (p Page) Offset() int {
	return min((p.Number-1)*p.Size, p.Total)
}

func (p Page) End() int {
	return min(p.Offset()+p.Size, p.Total)
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Pages }
func (p Page) Prev() int     { return p.Number - 1 }
func (p Page) Next() int     { return p.Number + 1 }
