// Package watch assembles the gateway reader, order engine, liveness
// monitor, HTTP API and broker sinks into one process.
package watch

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/gatewatch/internal/auth"
	"github.com/danmuck/gatewatch/internal/config"
	"github.com/danmuck/gatewatch/internal/gateway"
	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/orders"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/server"
	"github.com/danmuck/gatewatch/internal/sink"
)

const (
	ServiceID      = "gatewatch"
	statusInterval = 30 * time.Second
)

// ErrStreamEnded stops the service when the gateway closes the stream.
// Reconnecting is left to the process supervisor.
var ErrStreamEnded = errors.New("watch: gateway stream ended")

type Service struct {
	cfg config.Config

	engine    *orders.Engine
	monitor   *heartbeat.Monitor
	tally     *gateway.Tally
	reader    *gateway.Reader
	commander *gateway.Commander
	session   *gateway.Session
	server    *server.Server

	orderSink    *sink.OrderPublisher
	livenessSink *sink.LivenessPublisher
	redis        *redis.Client
}

func NewService(cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	monitor, err := heartbeat.NewMonitor(cfg.MonitorConfig())
	if err != nil {
		return nil, err
	}
	engine := orders.NewEngine(cfg.EngineConfig())

	d := gateway.NewDispatcher()
	d.Register(frame.TagEmbedded, gateway.NewEmbeddedHandler(engine))
	tally := gateway.NewTally()
	tally.Register(d)

	s := &Service{
		cfg:       cfg,
		engine:    engine,
		monitor:   monitor,
		tally:     tally,
		reader:    gateway.NewReader(d, monitor),
		commander: gateway.NewCommander(cfg.Gateway.Session),
	}
	if strings.TrimSpace(cfg.Gateway.ReplayPath) == "" {
		s.session = gateway.NewSession(cfg.SessionConfig(), s.reader, monitor, s.commander)
	}

	if cfg.Kafka.Enabled() {
		s.orderSink = sink.NewOrderPublisher(sink.NewKafkaWriter(cfg.Kafka), sink.DefaultBuffer)
		engine.Subscribe(s.orderSink.Observe)
	}
	if cfg.Redis.Enabled() {
		s.redis = sink.NewRedisClient(cfg.Redis)
		s.livenessSink = sink.NewLivenessPublisher(s.redis, cfg.Redis.Channel, cfg.Gateway.Session, sink.DefaultBuffer)
		monitor.Subscribe(s.livenessSink.Observe)
	}

	deps := server.Deps{
		Engine:    engine,
		Monitor:   monitor,
		Reader:    s.reader,
		Tally:     tally,
		Commander: s.commander,
	}
	if token := cfg.HTTP.CommandToken; token != "" {
		deps.CommandAuth = auth.StaticToken(token)
	}
	s.server = server.New(ServiceID, cfg.HTTP.Addr, cfg.HTTP.CorsOrigins, deps)
	return s, nil
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs every component until ctx is cancelled or one of them fails.
// A finished replay keeps the API up so the result can be inspected; a
// finished live stream ends the service.
func (s *Service) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.server.Serve(ctx) })
	if s.orderSink != nil {
		g.Go(func() error { return s.orderSink.Run(ctx) })
	}
	if s.livenessSink != nil {
		g.Go(func() error { return s.livenessSink.Run(ctx) })
		g.Go(func() error {
			<-ctx.Done()
			return s.redis.Close()
		})
	}
	if s.session != nil {
		g.Go(func() error {
			err := s.session.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = ErrStreamEnded
			}
			return err
		})
	} else {
		g.Go(func() error {
			err := gateway.Replay(ctx, s.cfg.Gateway.ReplayPath, s.reader)
			if errors.Is(err, gateway.ErrFraming) {
				log.Error().Msgf("watch.service replay stopped early err=%v", err)
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		s.statusLoop(ctx)
		return nil
	})

	log.Info().Msgf(
		"watch.service started http=%q gateway=%q replay=%q kafka=%v redis=%v",
		s.cfg.HTTP.Addr,
		s.cfg.Gateway.Address,
		s.cfg.Gateway.ReplayPath,
		s.orderSink != nil,
		s.livenessSink != nil,
	)
	err := g.Wait()
	s.monitor.Disconnect()
	log.Info().Msgf("watch.service shutdown err=%v", err)
	return err
}

func (s *Service) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.engine.Stats()
			rs := s.reader.Stats()
			log.Info().Msgf(
				"watch.service status liveness=%s envelopes=%d orders=%d pending=%d hits=%d misses=%d",
				s.monitor.Status(),
				rs.Envelopes,
				stats.Orders,
				stats.Pending,
				stats.Hits,
				stats.Misses,
			)
		}
	}
}

func (s *Service) Engine() *orders.Engine { return s.engine }
func (s *Service) Monitor() *heartbeat.Monitor { return s.monitor }
func (s *Service) Reader() *gateway.Reader { return s.reader }
func (s *Service) Server() *server.Server { return s.server }
func (s *Service) Commander() *gateway.Commander { return s.commander }
