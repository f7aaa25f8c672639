package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// resetQueue clears the global queue between tests.
func resetQueue(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		q.mu.Lock()

		q.tasks = nil
		q.closed = false

		q.mu.Unlock()
	})
}

func noop(context.Context) error { return nil }

//nolint:paralleltest
func TestAddNilTaskIsNoop(t *testing.T) {
	resetQueue(t)

	Add("nil", nil)

	if got := Pending(); len(got) != 0 {
		t.Fatalf("nil task registered: %v", got)
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("expected nil after adding nil task; got %v", err)
	}
}

//nolint:paralleltest
func TestLIFOOrder(t *testing.T) {
	resetQueue(t)

	var (
		orderMu sync.Mutex
		order   []string
	)

	for _, name := range []string{"db", "broker", "http"} {
		Add(name, func(context.Context) error {
			orderMu.Lock()
			order = append(order, name)
			orderMu.Unlock()

			return nil
		})
	}

	want := []string{"http", "broker", "db"}

	if got := Pending(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("pending = %v, want %v", got, want)
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

//nolint:paralleltest
func TestPanicRecoveryNamesTaskAndContinues(t *testing.T) {
	resetQueue(t)

	var ranAfterPanic atomic.Bool

	Add("after", func(context.Context) error {
		ranAfterPanic.Store(true)
		return nil
	})
	Add("exploding", func(context.Context) error { panic("boom") })

	shErr := Shutdown(t.Context())
	if shErr == nil {
		t.Fatalf("expected error with panic; got nil")
	}

	if !strings.Contains(shErr.Error(), `panic in shutdown task "exploding": boom`) {
		t.Fatalf("expected named panic in error; got: %q", shErr.Error())
	}

	if !ranAfterPanic.Load() {
		t.Fatalf("expected tasks after the panic to still run")
	}
}

//nolint:paralleltest
func TestEarlyCancelNamesSkippedTask(t *testing.T) {
	resetQueue(t)

	var ranB atomic.Bool

	gateReady := make(chan struct{})

	Add("a", func(context.Context) error { return errors.New("taskA") })
	Add("b", func(context.Context) error {
		ranB.Store(true)
		return nil
	})
	Add("gate", func(ctx context.Context) error {
		close(gateReady)
		<-ctx.Done()

		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)

	go func() {
		errCh <- Shutdown(ctx)
	}()

	<-gateReady
	cancel()

	shErr := <-errCh
	if !errors.Is(shErr, context.Canceled) {
		t.Fatalf("expected context.Canceled; got: %v", shErr)
	}

	if !strings.Contains(shErr.Error(), `before "b" and 1 more`) {
		t.Fatalf("expected skipped task names; got: %q", shErr.Error())
	}

	if ranB.Load() {
		t.Fatalf("expected task b not to run after cancel")
	}
}

//nolint:paralleltest
func TestIdempotentAndRunsOnce(t *testing.T) {
	resetQueue(t)

	var count atomic.Int32

	Add("count", func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := range 2 {
		err := Shutdown(ctx)
		if err != nil {
			t.Fatalf("Shutdown #%d error: %v", i+1, err)
		}
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("expected count=1; got %d", got)
	}
}

//nolint:paralleltest
func TestAddDuringShutdownIsIgnored(t *testing.T) {
	resetQueue(t)

	started := make(chan struct{})
	unblock := make(chan struct{})

	Add("noop", noop)
	Add("blocker", func(context.Context) error {
		close(started)
		<-unblock

		return nil
	})

	done := make(chan struct{})

	go func() {
		_ = Shutdown(context.Background())

		close(done)
	}()

	<-started

	var ran atomic.Bool

	Add("late", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	close(unblock)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Shutdown did not finish")
	}

	if ran.Load() {
		t.Fatalf("task added after shutdown should not run")
	}
}

//nolint:paralleltest
func TestTaskErrorsAreNamedAndJoined(t *testing.T) {
	resetQueue(t)

	err1 := errors.New("alpha")
	err2 := errors.New("beta")

	Add("postgres", func(context.Context) error { return err1 })
	Add("kafka", func(context.Context) error { return err2 })

	shErr := Shutdown(t.Context())
	if !errors.Is(shErr, err1) || !errors.Is(shErr, err2) {
		t.Fatalf("expected joined error to contain both; got: %v", shErr)
	}

	s := shErr.Error()
	if !strings.Contains(s, "postgres: alpha") || !strings.Contains(s, "kafka: beta") {
		t.Fatalf("expected task names in error; got: %q", s)
	}
}
