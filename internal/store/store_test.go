package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, kind := range []struct{ typ, name string }{
		{"table", "sessions"},
		{"table", "transitions"},
		{"table", "settings"},
		{"index", "idx_transitions_session_id"},
		{"index", "idx_transitions_created_at"},
	} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type=? AND name=?", kind.typ, kind.name).Scan(&name)
		if err != nil {
			t.Errorf("%s %q should exist after migrations: %v", kind.typ, kind.name, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	sess, err := s.Sessions().Start(nil)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()
	if _, err := s.Sessions().Get(sess.ID); err != nil {
		t.Errorf("session lost after reopen: %v", err)
	}
}

func TestNewStore_Memory(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	defer s.Close()

	if err := s.Settings().Set("k", "v"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if v, err := s.Settings().Get("k"); err != nil || v != "v" {
		t.Errorf("Get() = %q, %v", v, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}

	tr := &gesture.Transition{Seq: 1, Label: gesture.LabelOpenHand, Payload: gesture.PayloadOpen, At: time.Now()}
	if _, err := s.Transitions().Record("no-such-session", tr, 240, 240); err == nil {
		t.Error("recording into a missing session should fail")
	}
}

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	first, err := repo.Start(json.RawMessage(`{"target":"127.0.0.1:12345"}`))
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := repo.Start(nil)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("session ids must be unique")
	}

	got, err := repo.Get(first.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Config) != `{"target":"127.0.0.1:12345"}` {
		t.Errorf("Config = %s", got.Config)
	}
	if got.EndedAt != nil {
		t.Error("new session should not have ended")
	}

	if err := repo.End(first.ID); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	got, _ = repo.Get(first.ID)
	if got.EndedAt == nil {
		t.Error("EndedAt should be set after End()")
	}

	if err := repo.End("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("End(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	list, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("List() should return newest first, got %d sessions", len(list))
	}
}

func frameTransition(t *testing.T, seq uint64, hand detector.Hand, payload gesture.Payload, prev gesture.Label) *gesture.Transition {
	t.Helper()
	a, _ := detector.NewAdapter(detector.SpaceFractional, 0, 0)
	f, err := a.Adapt([]detector.Hand{hand})
	if err != nil {
		t.Fatalf("Adapt() failed: %v", err)
	}
	return &gesture.Transition{
		Seq:      seq,
		Label:    payload.Label(),
		Payload:  payload,
		Previous: prev,
		Frame:    f,
		At:       time.Now().Add(time.Duration(seq) * time.Millisecond),
	}
}

func TestTransitionRepository(t *testing.T) {
	s := newTestStore(t)
	sess, _ := s.Sessions().Start(nil)
	other, _ := s.Sessions().Start(nil)
	repo := s.Transitions()

	rec, err := repo.Record(sess.ID, frameTransition(t, 1, detector.OpenHandLandmarks(), "0000", gesture.LabelUnknown), 240, 240)
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if len(rec.Landmarks) != 2*detector.NumLandmarks {
		t.Errorf("recorded %d landmark coordinates, want %d", len(rec.Landmarks), 2*detector.NumLandmarks)
	}
	if _, err := repo.Record(sess.ID, frameTransition(t, 4, detector.ThumbIndexTouchLandmarks(), "1000", gesture.LabelOpenHand), 240, 240); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	bare := &gesture.Transition{Seq: 2, Label: gesture.LabelOpenHand, Payload: "0000", At: time.Now()}
	if _, err := repo.Record(other.ID, bare, 240, 240); err != nil {
		t.Fatalf("Record() without frame failed: %v", err)
	}

	got, err := repo.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Payload != "0000" || got.Label != "OPEN_HAND" || got.Previous != "UNKNOWN" || got.Seq != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if got.Landmarks[0] != 120 || got.Landmarks[1] != 192 {
		t.Errorf("wrist = (%d, %d), want (120, 192)", got.Landmarks[0], got.Landmarks[1])
	}

	list, err := repo.List(ListOptions{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 || list[0].Payload != "1000" || list[1].Payload != "0000" {
		t.Errorf("List() should return the session's transitions newest first, got %d", len(list))
	}

	list, _ = repo.List(ListOptions{Limit: 1})
	if len(list) != 1 {
		t.Errorf("List(limit 1) returned %d", len(list))
	}

	if n, _ := repo.Count(sess.ID); n != 2 {
		t.Errorf("Count(session) = %d, want 2", n)
	}
	if n, _ := repo.Count(""); n != 3 {
		t.Errorf("Count(all) = %d, want 3", n)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestJournal_Send(t *testing.T) {
	s := newTestStore(t)
	sess, _ := s.Sessions().Start(nil)
	j := s.Journal(sess.ID, 240, 240)

	if j.SessionID() != sess.ID {
		t.Errorf("SessionID() = %q", j.SessionID())
	}
	if err := j.Send(context.Background(), frameTransition(t, 1, detector.ThumbMiddleTouchLandmarks(), "0100", gesture.LabelUnknown)); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if n, _ := s.Transitions().Count(sess.ID); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-1: DefaultListLimit, 0: DefaultListLimit, 10: 10, MaxListLimit + 1: MaxListLimit}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSettingRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get(SettingEnabled); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() of unset key error = %v, want ErrNotFound", err)
	}
	if !repo.Bool(SettingEnabled, true) {
		t.Error("Bool() should fall back to the default")
	}

	if err := repo.SetBool(SettingEnabled, false); err != nil {
		t.Fatalf("SetBool() failed: %v", err)
	}
	if repo.Bool(SettingEnabled, true) {
		t.Error("Bool() = true after SetBool(false)")
	}

	repo.Set(SettingEnabled, "garbage")
	if !repo.Bool(SettingEnabled, true) {
		t.Error("Bool() should fall back to the default for unparseable values")
	}
}
