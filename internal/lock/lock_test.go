package lock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	l := New(path, 30*time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire error: %v", err)
	}

	info, err := Read(path)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", info.PID, os.Getpid())
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("Expected ErrNotLocked after release, got %v", err)
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	holder := New(path, time.Hour)
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("holder Acquire error: %v", err)
	}
	defer func() { _ = holder.Release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	waiter := New(path, time.Hour)
	err := waiter.Acquire(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestStaleMarkerReclaim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	// Simulate a crashed holder: marker exists with an old timestamp but
	// no live flock on it.
	info := Info{PID: 999999, AcquiredAt: time.Now().Add(-time.Hour)}
	data, _ := json.MarshalIndent(info, "", "  ")
	if err := os.WriteFile(path+".lock", data, 0644); err != nil {
		t.Fatal(err)
	}

	if !IsStale(path, 30*time.Second) {
		t.Fatal("Expected marker to be stale")
	}

	l := New(path, 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire over stale marker error: %v", err)
	}
	defer func() { _ = l.Release() }()

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if got.PID != os.Getpid() {
		t.Errorf("Marker not rewritten by reclaimer: PID = %d", got.PID)
	}
}

func TestWithReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	wantErr := errors.New("mutation failed")
	err := With(context.Background(), path, time.Hour, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected mutation error, got %v", err)
	}

	// Lock must be free again
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	l := New(path, time.Hour)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Lock leaked after failed mutation: %v", err)
	}
	_ = l.Release()
}

func TestForceRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	l := New(path, time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := ForceRelease(path); err != nil {
		t.Fatalf("ForceRelease error: %v", err)
	}
	if _, err := Read(path); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("Expected marker removed, got %v", err)
	}
}
