// Package app assembles the web application from its parts. Dependencies are
// passed explicitly through App; providers add to it in registration order.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-web/internal/api"
	"github.com/celerix-dev/celerix-web/internal/config"
	"github.com/celerix-dev/celerix-web/internal/web"
	"github.com/celerix-dev/celerix-web/pkg/engine"
	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

// Provider registers services and routes on an App.
type Provider interface {
	Register(a *App) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(a *App) error

func (f ProviderFunc) Register(a *App) error { return f(a) }

type App struct {
	Config config.Config
	Logger *slog.Logger
	Store  sdk.Store
	Router *gin.Engine
	Views  *web.Views

	providers []Provider
}

type Option func(*App)

// WithStore uses s instead of opening the store from the configuration.
func WithStore(s sdk.Store) Option {
	return func(a *App) { a.Store = s }
}

// New builds the application and runs the CoreProvider.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.AddProvider(CoreProvider{}); err != nil {
		return nil, err
	}
	return a, nil
}

// AddProvider runs p against the app and keeps it.
func (a *App) AddProvider(p Provider) error {
	if p == nil {
		return errors.New("app: nil provider")
	}
	if err := p.Register(a); err != nil {
		return fmt.Errorf("app: provider %T: %w", p, err)
	}
	a.providers = append(a.providers, p)
	return nil
}

func (a *App) Handler() http.Handler {
	return a.Router
}

// Close flushes the embedded engine or disconnects the remote client.
func (a *App) Close() error {
	switch s := a.Store.(type) {
	case *engine.MemStore:
		s.Wait()
	case io.Closer:
		return s.Close()
	}
	return nil
}

// CoreProvider wires the store, the router, the views and the API routes.
type CoreProvider struct{}

func (CoreProvider) Register(a *App) error {
	if a.Store == nil {
		store, err := sdk.Open(sdk.Options{
			Addr:       a.Config.Store.Addr,
			DisableTLS: a.Config.Store.DisableTLS,
			DataDir:    a.Config.DataDir,
		})
		if err != nil {
			return err
		}
		a.Store = store
	}

	if a.Config.Log.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestID(), api.Logger(a.Logger), api.CORS())

	tmpl, err := web.LoadTemplates(a.Config.Templates.Root)
	if err != nil {
		return err
	}
	a.Views = web.New(a.Store, tmpl, a.Config.Templates.PerPage, a.Logger)
	a.Views.Mount(r)

	api.Register(r.Group("/api"), a.Store)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
			return
		}
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Status":  http.StatusNotFound,
			"Message": "Page not found",
		})
	})

	a.Router = r
	return nil
}
