package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testErr struct{ retry bool }

func (e *testErr) Error() string   { return "test error" }
func (e *testErr) Retryable() bool { return e.retry }

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func TestDo_AlwaysRetryableExhausts(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	res, err := Do(context.Background(), Controller{Sleep: sleeper.sleep}, func(context.Context, int) (string, error) {
		calls++
		return "", &testErr{retry: true}
	})

	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
	if res.Attempts != 4 {
		t.Errorf("expected result attempts 4, got %d", res.Attempts)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 4 {
		t.Errorf("expected exhausted attempts 4, got %d", exhausted.Attempts)
	}
	var last *testErr
	if !errors.As(err, &last) {
		t.Error("expected ExhaustedError to unwrap to the last failure")
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if diff := cmp.Diff(want, sleeper.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_SuccessOnSecondAttempt(t *testing.T) {
	sleeper := &fakeSleeper{}

	res, err := Do(context.Background(), Controller{Sleep: sleeper.sleep}, func(_ context.Context, attempt int) (int, error) {
		if attempt == 0 {
			return 0, &testErr{retry: true}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if res.Value != 42 || res.Attempts != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if diff := cmp.Diff([]time.Duration{time.Second}, sleeper.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_TerminalErrorNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "non retryable typed error", err: &testErr{retry: false}},
		{name: "plain error", err: errors.New("plain")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &fakeSleeper{}
			calls := 0

			res, err := Do(context.Background(), Controller{Sleep: sleeper.sleep}, func(context.Context, int) (struct{}, error) {
				calls++
				return struct{}{}, tt.err
			})

			if !errors.Is(err, tt.err) {
				t.Errorf("expected terminal error returned unchanged, got %v", err)
			}
			var exhausted *ExhaustedError
			if errors.As(err, &exhausted) {
				t.Error("terminal error must not be wrapped as exhausted")
			}
			if calls != 1 || res.Attempts != 1 {
				t.Errorf("expected a single attempt, got calls=%d attempts=%d", calls, res.Attempts)
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("expected no delays, got %v", sleeper.delays)
			}
		})
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var states []State
	ctrl := Controller{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		Sleep:      (&fakeSleeper{}).sleep,
		OnRetry: func(s State, _ error, d time.Duration) {
			if d != s.NextDelay() {
				t.Errorf("hook delay %v != NextDelay %v", d, s.NextDelay())
			}
			states = append(states, s)
		},
	}

	_, _ = Do(context.Background(), ctrl, func(context.Context, int) (int, error) {
		return 0, &testErr{retry: true}
	})

	if len(states) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(states))
	}
	if states[1].Attempt != 1 || states[1].MaxAttempts != 3 {
		t.Errorf("unexpected state %+v", states[1])
	}
}

func TestDo_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Controller{MaxRetries: -1}, func(context.Context, int) (int, error) {
		calls++
		return 0, &testErr{retry: true}
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 1 {
		t.Errorf("expected exhaustion after 1 attempt, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancelled context")
	}
}

func TestState_NextDelay(t *testing.T) {
	s := State{base: time.Second}
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		s.Attempt = i
		if got := s.NextDelay(); got != want {
			t.Errorf("attempt %d: NextDelay() = %v, want %v", i, got, want)
		}
	}
}
