package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

// receiver collects the payloads that arrive at a loopback listener.
type receiver struct {
	mu       sync.Mutex
	payloads []gesture.Payload
	got      chan struct{}
}

func (r *receiver) handle(msg notify.Message, _ net.Addr) {
	r.mu.Lock()
	r.payloads = append(r.payloads, msg.Payload)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *receiver) all() []gesture.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gesture.Payload(nil), r.payloads...)
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logs.NewTestingLog(t)

	s, err := store.New(filepath.Join(t.TempDir(), "mudra.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	sess, err := s.Sessions().Start(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Sessions().Start() error = %v", err)
	}

	// Receiver on an ephemeral loopback port.
	rec := &receiver{got: make(chan struct{}, 16)}
	listener, err := notify.Listen(log, "127.0.0.1:0", rec.handle)
	if err != nil {
		t.Fatalf("notify.Listen() error = %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- listener.Serve(ctx) }()

	sinkCfg := notify.DefaultUDPSinkConfig()
	sinkCfg.Target = listener.Addr().String()
	udp, err := notify.NewUDPSink(log, sinkCfg)
	if err != nil {
		t.Fatalf("NewUDPSink() error = %v", err)
	}
	defer udp.Close()

	classifier, err := gesture.NewClassifier(gesture.DefaultConfig())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	adapter, err := detector.NewAdapter(detector.SpaceFractional, 240, 240)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	cam := capture.NewBlankMockCamera(5, 240, 240, false)
	defer cam.Release()
	cam.SetFPS(100)

	det := detector.NewMockDetector()
	det.Enqueue(
		[]detector.Hand{detector.OpenHandLandmarks()},
		[]detector.Hand{detector.OpenHandLandmarks()},
		nil,
		[]detector.Hand{detector.ThumbIndexTouchLandmarks()},
		[]detector.Hand{detector.ThumbIndexTouchLandmarks()},
	)

	pipeline, err := app.New(app.Config{
		Camera:             cam,
		Detector:           det,
		Adapter:            adapter,
		Tracker:            gesture.NewTracker(classifier, gesture.TrackerConfig{}),
		Sinks:              []notify.Sink{udp, s.Journal(sess.ID, 240, 240)},
		Log:                log,
		MaxCaptureFailures: 1,
		Enabled:            true,
		KeepFrames:         true,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	srv := server.New(server.Config{
		Pipeline:   pipeline,
		Store:      s,
		SessionID:  sess.ID,
		Classifier: classifier.Config(),
		Log:        log,
	})
	pipeline.AddSink(srv.Hub())
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Hub().Close()

	if err := pipeline.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pipeline.Stop()

	select {
	case <-pipeline.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not reach the end of the stream")
	}
	if err := pipeline.Err(); !errors.Is(err, capture.ErrEndOfStream) {
		t.Errorf("pipeline.Err() = %v, want end of stream", err)
	}

	want := []gesture.Payload{"0000", "1000"}

	t.Run("UDPReceiver", func(t *testing.T) {
		for range want {
			select {
			case <-rec.got:
			case <-time.After(2 * time.Second):
				t.Fatalf("receiver got %v, want %v", rec.all(), want)
			}
		}
		got := rec.all()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("receiver got %v, want %v", got, want)
		}
		if st := udp.Stats(); st.Sent != 2 {
			t.Errorf("udp stats = %+v, want 2 sent", st)
		}
	})

	t.Run("Journal", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/transitions?session=" + sess.ID)
		if err != nil {
			t.Fatalf("GET /api/transitions error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var result struct {
			Transitions []struct {
				Seq       uint64 `json:"seq"`
				Payload   string `json:"payload"`
				Name      string `json:"name"`
				Previous  string `json:"previous"`
				Landmarks []int  `json:"landmarks"`
			} `json:"transitions"`
			Total int `json:"total"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if result.Total != 2 || len(result.Transitions) != 2 {
			t.Fatalf("got %d transitions (total %d), want 2", len(result.Transitions), result.Total)
		}

		newest := result.Transitions[0]
		if newest.Payload != "1000" || newest.Name != "THUMB_INDEX" || newest.Previous != "OPEN_HAND" {
			t.Errorf("newest = %+v, want THUMB_INDEX after OPEN_HAND", newest)
		}
		if len(newest.Landmarks) != 2*detector.NumLandmarks {
			t.Errorf("newest has %d landmark values, want %d", len(newest.Landmarks), 2*detector.NumLandmarks)
		}
		if result.Transitions[1].Payload != "0000" {
			t.Errorf("oldest payload = %q, want 0000", result.Transitions[1].Payload)
		}
	})

	t.Run("Status", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()

		var status struct {
			Enabled bool      `json:"enabled"`
			Running bool      `json:"running"`
			Current string    `json:"current"`
			Stats   app.Stats `json:"stats"`
			Session string    `json:"session"`
			Last    *struct {
				Payload string `json:"payload"`
			} `json:"last"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !status.Enabled || status.Running {
			t.Errorf("enabled = %v, running = %v, want enabled and stopped", status.Enabled, status.Running)
		}
		if status.Stats.Frames != 5 || status.Stats.Emitted != 2 {
			t.Errorf("stats = %+v, want 5 frames and 2 emitted", status.Stats)
		}
		if status.Session != sess.ID {
			t.Errorf("session = %q, want %q", status.Session, sess.ID)
		}
		if status.Last == nil || status.Last.Payload != "1000" {
			t.Errorf("last = %+v, want payload 1000", status.Last)
		}
	})

	t.Run("ReceiverStops", func(t *testing.T) {
		if err := udp.SendCommand(notify.StopCommand); err != nil {
			t.Fatalf("SendCommand() error = %v", err)
		}
		select {
		case err := <-served:
			if err != nil {
				t.Errorf("Serve() error = %v, want nil after stop", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not stop")
		}
	})
}
