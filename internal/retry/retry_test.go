package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	config := DefaultConfig()
	config.MaxAttempts = 3

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	config := Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Factor:       2.0,
	}

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestDo_MaxAttempts(t *testing.T) {
	config := Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Factor:       2.0,
	}

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		return errors.New("always fails")
	})

	if result.Err == nil {
		t.Error("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	config := Config{MaxAttempts: 5, InitialDelay: 1 * time.Millisecond}

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		return Permanent(errors.New("bad credentials"))
	})

	if result.Err == nil {
		t.Error("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for permanent), got %d", calls)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	config := Config{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := Do(ctx, config, func() error {
		return errors.New("retry")
	})

	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Err)
	}
}

func TestDoValue_UnwrapsPermanentError(t *testing.T) {
	type providerErr struct{ error }
	underlying := providerErr{errors.New("validation: bad field")}

	calls := 0
	_, err := DoValue(context.Background(), DefaultConfig(), func() (int, error) {
		calls++
		return 0, Permanent(underlying)
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	var got providerErr
	if !errors.As(err, &got) {
		t.Fatalf("expected unwrapped providerErr, got %v (%T)", err, err)
	}
}

func TestDoValue_RetriesThenReturnsValue(t *testing.T) {
	config := Config{MaxAttempts: 3, InitialDelay: 1 * time.Millisecond}

	calls := 0
	value, err := DoValue(context.Background(), config, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("retry")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestPermanent(t *testing.T) {
	err := errors.New("original")
	perm := Permanent(err)

	if !IsPermanent(perm) {
		t.Error("should be permanent")
	}
	if !errors.Is(perm, err) {
		t.Error("should unwrap to original")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MaxAttempts != 3 {
		t.Error("wrong default MaxAttempts")
	}
	if !config.Jitter {
		t.Error("default should have jitter")
	}
}

func TestDispatchConfig(t *testing.T) {
	config := DispatchConfig()
	if config.MaxAttempts != 3 {
		t.Error("wrong dispatch MaxAttempts")
	}
	if config.InitialDelay != 250*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 250ms", config.InitialDelay)
	}
	if config.MaxDelay != 4*time.Second {
		t.Errorf("MaxDelay = %v, want 4s", config.MaxDelay)
	}
}
