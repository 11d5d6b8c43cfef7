package simsource

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/precinct/internal/adapters/feed"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
)

const (
	serveWriteTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server streams a generated scenario to every connecting engine. Each
// session gets the full bootstrap-then-frames sequence from the top, so a
// reconnecting engine re-bootstraps cleanly.
type Server struct {
	cfg      *Config
	scenario model.Scenario
	frames   []model.Frame
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu    sync.Mutex
	stats Stats
	srv   *http.Server
}

// NewServer generates the scenario for cfg and prepares the stream endpoint.
func NewServer(ctx context.Context, cfg *Config) *Server {
	sc, frames := Generate(ctx, cfg)
	return &Server{
		cfg:      cfg,
		scenario: sc,
		frames:   frames,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("simsource"),
		stats: Stats{
			FramesGenerated: len(frames),
			CountiesServed:  len(sc.Baseline),
			StartTime:       time.Now(),
		},
	}
}

// ListenAndServe blocks serving /stream until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "simulation source listening",
		logger.String("addr", s.cfg.Addr),
		logger.String("scenario_id", s.scenario.ID),
		logger.Int("frames", len(s.frames)),
		logger.Bool("shuffle", s.cfg.Shuffle),
		logger.Bool("burst", s.cfg.Burst))

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("simulation source serve failed: %w", err)
	}
	return nil
}

// Stats returns a copy of the delivery statistics.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.stats.Sessions++
	session := s.stats.Sessions
	s.mu.Unlock()

	s.logger.Info(r.Context(), "engine connected",
		logger.Int("session", session),
		logger.String("remote", conn.RemoteAddr().String()))

	if err := s.streamSession(r.Context(), conn); err != nil {
		s.logger.Warn(r.Context(), "session ended early",
			logger.Int("session", session), logger.Error(err))
		return
	}
	s.logger.Info(r.Context(), "session delivered", logger.Int("session", session))
}

// streamSession plays one full scenario to a connected engine: bootstrap,
// frames in the configured order and pacing, then the lifecycle tail.
func (s *Server) streamSession(ctx context.Context, conn *websocket.Conn) error {
	if err := s.send(conn, feed.Envelope{Type: feed.TypeScenario, Scenario: &s.scenario}); err != nil {
		return err
	}

	order := make([]int, len(s.frames))
	for i := range order {
		order[i] = i
	}
	if s.cfg.Shuffle {
		// Deliberately out of timestamp order; the engine's buffer must
		// reorder on replay.
		rand.New(rand.NewSource(s.cfg.Seed)).Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var prevTS float64
	for _, idx := range order {
		f := s.frames[idx]
		if !s.cfg.Burst && !s.cfg.Shuffle && s.cfg.Compression > 0 {
			wait := time.Duration((f.Timestamp - prevTS) / s.cfg.Compression * float64(time.Second))
			prevTS = f.Timestamp
			if wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		if err := s.send(conn, feed.Envelope{Type: feed.TypeFrame, Frame: &f}); err != nil {
			return err
		}
		s.mu.Lock()
		s.stats.FramesDelivered++
		s.mu.Unlock()
	}

	if err := s.send(conn, feed.Envelope{Type: feed.TypeReady}); err != nil {
		return err
	}
	if err := s.send(conn, feed.Envelope{Type: feed.TypeCompleted}); err != nil {
		return err
	}

	// Hold the connection open; the engine keeps replaying from its buffer
	// and only needs the socket for liveness.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (s *Server) send(conn *websocket.Conn, env feed.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(serveWriteTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s envelope: %w", env.Type, err)
	}
	return nil
}
