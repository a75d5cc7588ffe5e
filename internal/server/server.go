// Package server exposes documents, chunk audio and saved positions over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
	"github.com/metcalfc/readaloud/internal/state"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Renderer produces the audio for one chunk.
type Renderer interface {
	Render(ctx context.Context, index int, text, voice string) (speech.AudioAsset, error)
}

// Options configure a Server.
type Options struct {
	MaxUploadBytes int64
	Chunk          reader.ChunkOptions
	Voice          string
}

// Server holds uploaded documents in memory and positions in a state.Store.
type Server struct {
	store    state.Store
	renderer Renderer
	log      *zap.Logger
	opts     Options
	engine   *gin.Engine

	mu   sync.RWMutex
	docs map[string]*reader.Document
}

// New builds the routes. renderer may be nil, in which case the audio
// endpoint answers 501.
func New(store state.Store, renderer Renderer, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		store:    store,
		renderer: renderer,
		log:      log.Named("server"),
		opts:     opts,
		docs:     make(map[string]*reader.Document),
	}

	engine := gin.New()
	engine.Use(
		RequestID(),
		Logger(s.log),
		Recovery(s.log),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/audio$`})),
	)
	s.registerRoutes(engine.Group("/api"))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine = engine
	return s
}

func (s *Server) registerRoutes(api *gin.RouterGroup) {
	api.POST("/documents", s.uploadDocument)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.GET("/documents/:id/chunks/:index/audio", s.chunkAudio)

	api.GET("/positions/:id", s.getPosition)
	api.PUT("/positions/:id", s.putPosition)
	api.DELETE("/positions/:id", s.deletePosition)
}

// Handler is the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	s.log.Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) document(id string) (*reader.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *Server) addDocument(doc *reader.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}
