package simsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/precinct/internal/adapters/feed"
)

func httpHandler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	return mux
}

func TestBurstSessionDeliversFullScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Burst = true
	srv := NewServer(context.Background(), cfg)

	ts := httptest.NewServer(httpHandler(srv))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var env feed.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read bootstrap: %v", err)
	}
	if env.Type != feed.TypeScenario || env.Scenario == nil {
		t.Fatalf("first envelope = %q, want scenario", env.Type)
	}
	if len(env.Scenario.Baseline) != cfg.Counties {
		t.Fatalf("bootstrap carries %d counties, want %d", len(env.Scenario.Baseline), cfg.Counties)
	}

	var frames int
	var sawReady, sawCompleted bool
	for !sawCompleted {
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read after %d frames: %v", frames, err)
		}
		switch env.Type {
		case feed.TypeFrame:
			if env.Frame == nil || len(env.Frame.Counties) == 0 {
				t.Fatal("empty frame envelope")
			}
			frames++
		case feed.TypeReady:
			sawReady = true
		case feed.TypeCompleted:
			sawCompleted = true
		default:
			t.Fatalf("unexpected envelope %q", env.Type)
		}
	}

	if !sawReady {
		t.Fatal("ready envelope never arrived")
	}
	if frames != srv.Stats().FramesGenerated {
		t.Fatalf("delivered %d frames, generated %d", frames, srv.Stats().FramesGenerated)
	}
}

func TestShuffleDeliversOutOfOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Shuffle = true
	srv := NewServer(context.Background(), cfg)

	ts := httptest.NewServer(httpHandler(srv))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var env feed.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read bootstrap: %v", err)
	}

	var timestamps []float64
	for {
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		if env.Type == feed.TypeCompleted {
			break
		}
		if env.Type == feed.TypeFrame {
			timestamps = append(timestamps, env.Frame.Timestamp)
		}
	}

	inOrder := true
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] < timestamps[i-1] {
			inOrder = false
			break
		}
	}
	if inOrder {
		t.Fatal("shuffled delivery arrived in timestamp order")
	}
}
