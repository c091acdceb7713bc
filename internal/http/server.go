package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"transcripto/internal/config"
	"transcripto/internal/services"
	"transcripto/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *log.Logger
}

func NewServer(cfg config.Config, logger *log.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fm, err := storage.NewFileManager(cfg.UploadDir, cfg.MaxUploadBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	notes, err := storage.NewNoteStore(cfg.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("init note store: %w", err)
	}

	profiles, err := storage.NewProfileStore(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("init profile store: %w", err)
	}

	suite := services.NewSuite(cfg, notes, logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS(cfg.AllowedOrigins))

	api := NewAPI(cfg, logger, fm, notes, profiles, suite.Transcriber, suite.Notes, suite.Chat)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg, log: logger}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
