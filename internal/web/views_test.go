package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-web/internal/blog"
	"github.com/celerix-dev/celerix-web/pkg/engine"
	"github.com/celerix-dev/celerix-web/pkg/entity"
	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seedPost(t *testing.T, store sdk.Store, data entity.Data) {
	t.Helper()
	p, err := blog.NewPost(data)
	require.NoError(t, err)
	_, err = sdk.Save(store, blog.Posts, p)
	require.NoError(t, err)
}

func setupViews(t *testing.T, perPage int) (*gin.Engine, *engine.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := LoadTemplates("")
	require.NoError(t, err)

	store := engine.NewMemStore(nil, nil)
	v := New(store, tmpl, perPage, nil)
	v.now = func() time.Time { return fixedNow }

	r := gin.New()
	v.Mount(r)
	return r, store
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHome_Empty(t *testing.T) {
	r, _ := setupViews(t, 10)

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nothing published yet.")
	assert.Contains(t, w.Body.String(), "Page 1 of 1")
}

func TestHome_ListsPublishedPosts(t *testing.T) {
	r, store := setupViews(t, 10)
	seedPost(t, store, entity.Data{"title": "Visible", "body": "Intro text<!--more-->hidden", "publishedDate": "2024-05-01 00:00:00"})
	seedPost(t, store, entity.Data{"title": "Draft", "body": "secret"})
	seedPost(t, store, entity.Data{"title": "Scheduled", "publishedDate": "2024-07-01 00:00:00"})

	_, err := store.Save("sponsors", 0, map[string]any{"name": "Acme", "amount": "5"})
	require.NoError(t, err)

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<a href="/posts/visible">Visible</a>`)
	assert.Contains(t, body, "Intro text")
	assert.Contains(t, body, "May 1, 2024")
	assert.Contains(t, body, "Acme (5.00)")
	assert.NotContains(t, body, "hidden")
	assert.NotContains(t, body, "Draft")
	assert.NotContains(t, body, "Scheduled")
}

func TestHome_Pagination(t *testing.T) {
	r, store := setupViews(t, 2)
	for i := 1; i <= 5; i++ {
		seedPost(t, store, entity.Data{
			"title":         fmt.Sprintf("Post %d", i),
			"publishedDate": fmt.Sprintf("2024-01-%02d 00:00:00", i),
		})
	}

	w := get(r, "/?page=2&tag=go")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Page 2 of 3")
	assert.Contains(t, body, "Post 3")
	assert.Contains(t, body, "Post 2")
	assert.NotContains(t, body, "Post 5")
	assert.Contains(t, body, `href="?page=1&amp;tag=go"`)
	assert.Contains(t, body, `href="?page=3&amp;tag=go"`)

	w = get(r, "/?page=3")
	assert.Contains(t, w.Body.String(), "Post 1")
	assert.NotContains(t, w.Body.String(), `rel="next"`)
}

func TestPost(t *testing.T) {
	r, store := setupViews(t, 10)
	seedPost(t, store, entity.Data{"title": "Markdown Post", "body": "Some **bold** text", "publishedDate": "2024-01-01 00:00:00"})
	seedPost(t, store, entity.Data{"title": "Unpublished"})

	w := get(r, "/posts/markdown-post")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>bold</strong>")
	assert.Contains(t, w.Body.String(), "<title>Markdown Post - Celerix</title>")

	w = get(r, "/posts/unpublished")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Post not found")
}

func TestLoadTemplates_Root(t *testing.T) {
	root := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o600))
	}
	write("layout.html", `{{define "header"}}[{{end}}{{define "footer"}}]{{end}}`)
	write("home.html", `{{template "header" .}}custom {{.Page.Number}}{{template "footer" .}}`)

	tmpl, err := LoadTemplates(root)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(engine.NewMemStore(nil, nil), tmpl, 10, nil).Mount(r)

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[custom 1]", w.Body.String())
}
