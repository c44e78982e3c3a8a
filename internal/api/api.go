// Package api serves the store and the blog records as JSON over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/celerix-dev/celerix-web/internal/blog"
	"github.com/celerix-dev/celerix-web/pkg/entity"
	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

var errEmptyBody = errors.New("request body must be a JSON object")

// Handler exposes table-level store operations.
type Handler struct {
	Store sdk.Store
}

// Register mounts every API route on g.
func Register(g *gin.RouterGroup, store sdk.Store) {
	h := &Handler{Store: store}
	g.GET("/tables", h.GetTables)
	g.GET("/tables/:table", h.DumpTable)

	Mount(g, "/posts", &Resource[*blog.Post]{Store: store, Schema: blog.Posts})
	Mount(g, "/sponsors", &Resource[*blog.Sponsor]{Store: store, Schema: blog.Sponsors})
}

func (h *Handler) GetTables(c *gin.Context) {
	tables, err := h.Store.Tables()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

// DumpTable returns the stored rows of a table keyed by id.
func (h *Handler) DumpTable(c *gin.Context) {
	rows, err := h.Store.DumpTable(c.Param("table"))
	if err != nil {
		abort(c, err)
		return
	}
	byID := make(map[string]map[string]any, len(rows))
	for id, row := range rows {
		byID[strconv.FormatInt(id, 10)] = row
	}
	c.JSON(http.StatusOK, byID)
}

// Resource serves CRUD routes for one record type.
type Resource[T entity.Record] struct {
	Store  sdk.Store
	Schema *entity.Schema[T]
}

func Mount[T entity.Record](g *gin.RouterGroup, path string, r *Resource[T]) {
	g.GET(path, r.List)
	g.GET(path+"/:id", r.Get)
	g.POST(path, r.Create)
	g.PATCH(path+"/:id", r.Update)
	g.DELETE(path+"/:id", r.Delete)
}

func (r *Resource[T]) List(c *gin.Context) {
	recs, err := sdk.All(r.Store, r.Schema)
	if err != nil {
		abort(c, err)
		return
	}
	out := make([]*entity.Map, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.Schema.ToTransport(rec))
	}
	c.JSON(http.StatusOK, out)
}

func (r *Resource[T]) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rec, err := sdk.Find(r.Store, r.Schema, id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Schema.ToTransport(rec))
}

func (r *Resource[T]) Create(c *gin.Context) {
	data, ok := bindData(c)
	if !ok {
		return
	}
	// Identity and timestamps are owned by the store and the record model.
	delete(data, entity.FieldID)
	delete(data, entity.FieldCreatedDate)
	delete(data, entity.FieldModifiedDate)

	rec, err := r.Schema.New(data)
	if err != nil {
		abort(c, err)
		return
	}
	saved, err := sdk.Save(r.Store, r.Schema, rec)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, r.Schema.ToTransport(saved))
}

func (r *Resource[T]) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	data, ok := bindData(c)
	if !ok {
		return
	}

	rec, err := sdk.Find(r.Store, r.Schema, id)
	if err != nil {
		abort(c, err)
		return
	}
	if _, err := r.Schema.Set(rec, data); err != nil {
		abort(c, err)
		return
	}
	saved, err := sdk.Save(r.Store, r.Schema, rec)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Schema.ToTransport(saved))
}

func (r *Resource[T]) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := sdk.Remove(r.Store, r.Schema, id); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid id %q", c.Param("id"))})
		return 0, false
	}
	return id, true
}

// bindData decodes the body keeping integers exact.
func bindData(c *gin.Context) (entity.Data, bool) {
	var data entity.Data
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmptyBody.Error()})
		return nil, false
	}
	return data, true
}

func abort(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusOf maps store and record errors to HTTP statuses.
func StatusOf(err error) int {
	var fieldErr *entity.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest
	case errors.Is(err, sdk.ErrRowNotFound), errors.Is(err, sdk.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, sdk.ErrInvalidTable), errors.Is(err, sdk.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
