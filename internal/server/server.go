// Package server exposes gateway state over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/auth"
	"github.com/danmuck/gatewatch/internal/gateway"
	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/orders"
)

const shutdownGrace = 5 * time.Second

// Deps are the live components the API reads from. Any of them may be nil;
// the matching routes then answer 503.
type Deps struct {
	Engine    *orders.Engine
	Monitor   *heartbeat.Monitor
	Reader    *gateway.Reader
	Tally     *gateway.Tally
	Commander *gateway.Commander

	// CommandAuth, when set, guards POST /commands.
	CommandAuth auth.Validator
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	deps   Deps
	router *gin.Engine
}

func New(id, addr string, corsOrigins []string, deps Deps) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger(id, "http")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		deps:     deps,
		router:   r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on Addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("server.http listening addr=%q", s.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Msgf("server.http shutdown err=%v", err)
		return err
	}
	log.Info().Msgf("server.http stopped addr=%q", s.Addr)
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
