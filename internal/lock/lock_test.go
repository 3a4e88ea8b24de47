package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	if got := Path("/tmp/x", "DEMO"); got != filepath.Join("/tmp/x", "casesync-DEMO.lock") {
		t.Errorf("Path = %q", got)
	}
}

func TestAcquire_Exclusive(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "nested"), "DEMO")
	ctx := context.Background()

	first, err := Acquire(ctx, path, 0)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if first.Path() != path {
		t.Errorf("Path = %q", first.Path())
	}

	if _, err := Acquire(ctx, path, 0); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire err = %v, want ErrLocked", err)
	}
	if _, err := Acquire(ctx, path, 250*time.Millisecond); !errors.Is(err, ErrLocked) {
		t.Fatalf("waiting Acquire err = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := Acquire(ctx, path, 0)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again.Release()
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	path := Path(t.TempDir(), "DEMO")
	held, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(150 * time.Millisecond)
		held.Release()
	}()

	l, err := Acquire(context.Background(), path, 5*time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	l.Release()
}

func TestAcquire_CancelledContext(t *testing.T) {
	path := Path(t.TempDir(), "DEMO")
	held, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Acquire(ctx, path, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
