package routing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/infra/rpc/provider"
)

type mockProvider struct {
	name      string
	errs      []error
	calls     int
	available bool
}

func newMockProvider(name string, errs ...error) *mockProvider {
	return &mockProvider{name: name, errs: errs, available: true}
}

func (m *mockProvider) GetName() string { return m.name }

func (m *mockProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`"` + m.name + `"`), nil
}

func (m *mockProvider) GetHealth() provider.HealthStatus { return provider.HealthStatus{Available: m.available} }
func (m *mockProvider) IsAvailable() bool                { return m.available }
func (m *mockProvider) Close() error                     { return nil }

var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    time.Millisecond,
	MaxDelay:        time.Millisecond,
	BackoffMultiple: 2,
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionFailover},
		{errors.New("rate limit exceeded"), ActionFailover},
		{errors.New("ip blocked (403)"), ActionFailover},
		{errors.New("throttle in rpc error: slow down"), ActionFailover},
		{errors.New("rpc error -32600: Invalid Request"), ActionFatal},
		{errors.New("rpc error -32601: Method not found"), ActionFatal},
		{errors.New("rpc error -32700: Parse error"), ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("http 502: bad gateway"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestCallWithRetry_RecoversFromTransient(t *testing.T) {
	p := newMockProvider("a", errors.New("timeout"), errors.New("timeout"))

	result, err := CallWithRetry(context.Background(), p, "m", nil, fastRetry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `"a"` || p.calls != 3 {
		t.Errorf("expected result from third call, got %s after %d calls", result, p.calls)
	}
}

func TestCallWithRetry_BackoffFollowsClock(t *testing.T) {
	mock := clock.NewMock()
	cfg := RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Hour,
		MaxDelay:        time.Hour,
		BackoffMultiple: 1,
		Clock:           mock,
	}
	p := newMockProvider("a", errors.New("timeout"), errors.New("timeout"))

	done := make(chan error, 1)
	go func() {
		_, err := CallWithRetry(context.Background(), p, "m", nil, cfg)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Expected call to wait for the clock, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if p.calls != 3 {
				t.Errorf("Expected 3 calls, got %d", p.calls)
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("Retry never resumed after advancing the clock")
		}
		mock.Add(time.Hour)
		time.Sleep(time.Millisecond)
	}
}

func TestCallWithRetry_FatalStopsImmediately(t *testing.T) {
	p := newMockProvider("a", errors.New("rpc error -32602: invalid params"))

	if _, err := CallWithRetry(context.Background(), p, "m", nil, fastRetry); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("expected 1 call, got %d", p.calls)
	}
}

func TestCallWithRetryAndFailover(t *testing.T) {
	a := newMockProvider("a", errors.New("429 Too Many Requests"))
	b := newMockProvider("b")
	router := NewRouter(a, b)

	result, err := CallWithRetryAndFailover(context.Background(), router, "m", nil, fastRetry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `"b"` {
		t.Errorf("expected failover to b, got %s", result)
	}

	// b answered last, so it is tried first now.
	if first := router.Providers()[0].GetName(); first != "b" {
		t.Errorf("expected b preferred, got %s", first)
	}
}

func TestCallWithRetryAndFailover_AllFail(t *testing.T) {
	a := newMockProvider("a", errors.New("forbidden"))
	b := newMockProvider("b", errors.New("forbidden"))

	_, err := CallWithRetryAndFailover(context.Background(), NewRouter(a, b), "m", nil, fastRetry)
	if err == nil || !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("expected all providers failed, got %v", err)
	}
}

func TestCallWithRetryAndFailover_NoProviders(t *testing.T) {
	_, err := CallWithRetryAndFailover(context.Background(), NewRouter(), "m", nil, fastRetry)
	if !errors.Is(err, ErrNoProviders) {
		t.Errorf("expected ErrNoProviders, got %v", err)
	}
}

func TestRouter_OpenCircuitGoesLast(t *testing.T) {
	a := newMockProvider("a")
	b := newMockProvider("b")
	router := NewRouter(a, b)

	for i := 0; i < circuitThreshold; i++ {
		router.RecordFailure("a", errors.New("timeout"))
	}

	order := router.Providers()
	if order[0].GetName() != "b" || order[1].GetName() != "a" {
		t.Errorf("expected [b a], got [%s %s]", order[0].GetName(), order[1].GetName())
	}
}

func TestRouter_UnavailableGoesLast(t *testing.T) {
	a := newMockProvider("a")
	a.available = false
	b := newMockProvider("b")

	order := NewRouter(a, b).Providers()
	if order[0].GetName() != "b" {
		t.Errorf("expected b first, got %s", order[0].GetName())
	}
}
