package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-report/internal/blobcache"
	"github.com/tbourn/go-meme-report/internal/config"
	httpapi "github.com/tbourn/go-meme-report/internal/http"
	"github.com/tbourn/go-meme-report/internal/notify"
	"github.com/tbourn/go-meme-report/internal/regen"
	"github.com/tbourn/go-meme-report/internal/repo"
	"github.com/tbourn/go-meme-report/internal/report"
	"github.com/tbourn/go-meme-report/internal/services"
	"github.com/tbourn/go-meme-report/internal/source"
)

// App is the wired process: storage, pipeline and its collaborators.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Blobs    blobcache.Store
	Pipeline *services.Pipeline
}

// Build opens storage and wires every pipeline stage from cfg. Close releases
// what Build acquired.
func Build(cfg config.Config) (*App, error) {
	db, err := repo.Open(cfg.DB, cfg.OTEL.Enabled)
	if err != nil {
		return nil, err
	}
	blobs, err := newStore(cfg)
	if err != nil {
		_ = repo.Close(db)
		return nil, err
	}
	notifier, err := notify.New(cfg.NotifyURLs, cfg.NotifyTimeout)
	if err != nil {
		_ = repo.Close(db)
		return nil, fmt.Errorf("notify: %w", err)
	}

	p := &services.Pipeline{
		DB:     db,
		Source: source.New(cfg.Source, cfg.FetchTimeout),
		Blobs:  blobs,
		Reconciler: &blobcache.Reconciler{
			Store:   blobs,
			Fetcher: blobcache.NewHTTPFetcher(cfg.FetchTimeout, cfg.Source.UserAgent),
			Workers: cfg.FetchWorkers,
		},
		Renderer:     &report.HTMLRenderer{Dir: cfg.ReportsDir, Name: services.DefaultArtifactName},
		Debouncer:    regen.New(regen.GormRecords{DB: db}),
		Notifier:     notifier,
		TopN:         cfg.TopN,
		TimeWindow:   cfg.TimeWindow,
		Retention:    cfg.Retention,
		Freshness:    cfg.FreshnessWindow,
		ArtifactName: services.DefaultArtifactName,
		Texts: services.Texts{
			PageTitle:    cfg.Report.PageTitle,
			Heading:      cfg.Report.Heading,
			TableHeading: cfg.Report.TableHeading,
		},
	}
	return &App{Config: cfg, DB: db, Blobs: blobs, Pipeline: p}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	return repo.Close(a.DB)
}

// Handler returns the Gin engine serving the report API.
func (a *App) Handler() http.Handler {
	gin.SetMode(a.Config.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, a.Pipeline, a.Config)
	return r
}

// Server returns an http.Server with the configured timeouts.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Handler(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: a.Config.ReadHeaderTimeout,
		WriteTimeout:      a.Config.WriteTimeout,
		IdleTimeout:       a.Config.IdleTimeout,
		MaxHeaderBytes:    a.Config.MaxHeaderBytes,
	}
}

func newStore(cfg config.Config) (blobcache.Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		return blobcache.NewMemoryStore(), nil
	case "fs", "":
		fs, err := blobcache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, errors.New("unsupported cache backend: " + cfg.CacheBackend)
	}
}
