package ratelimit

import (
	"testing"
	"time"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStore_Take(t *testing.T) {
	now := testStart
	s := NewStore()
	s.now = func() time.Time { return now }

	count, reset := s.Take("requests:alice", 1, time.Minute)
	if count != 1 {
		t.Errorf("first Take() count = %d, want 1", count)
	}
	if !reset.Equal(testStart.Add(time.Minute)) {
		t.Errorf("first Take() reset = %v, want %v", reset, testStart.Add(time.Minute))
	}

	count, _ = s.Take("requests:alice", 1, time.Minute)
	if count != 2 {
		t.Errorf("second Take() count = %d, want 2", count)
	}

	// A different key gets its own window.
	count, _ = s.Take("requests:bob", 1, time.Minute)
	if count != 1 {
		t.Errorf("Take() for second key count = %d, want 1", count)
	}

	// Weighted takes accumulate by weight.
	count, _ = s.Take("tokens:alice", 500, time.Minute)
	if count != 500 {
		t.Errorf("weighted Take() count = %d, want 500", count)
	}
	count, _ = s.Take("tokens:alice", 250, time.Minute)
	if count != 750 {
		t.Errorf("weighted Take() count = %d, want 750", count)
	}
}

func TestStore_TakeResetsExpiredWindow(t *testing.T) {
	now := testStart
	s := NewStore()
	s.now = func() time.Time { return now }

	s.Take("requests:alice", 1, time.Minute)
	s.Take("requests:alice", 1, time.Minute)

	// At exactly the reset time the window is still active.
	now = testStart.Add(time.Minute)
	count, _ := s.Take("requests:alice", 1, time.Minute)
	if count != 3 {
		t.Errorf("Take() at reset instant count = %d, want 3", count)
	}

	// Past the reset time a fresh window starts.
	now = testStart.Add(time.Minute + time.Second)
	count, reset := s.Take("requests:alice", 1, time.Minute)
	if count != 1 {
		t.Errorf("Take() after expiry count = %d, want 1", count)
	}
	if !reset.Equal(now.Add(time.Minute)) {
		t.Errorf("Take() after expiry reset = %v, want %v", reset, now.Add(time.Minute))
	}
}

func TestStore_Peek(t *testing.T) {
	now := testStart
	s := NewStore()
	s.now = func() time.Time { return now }

	count, reset := s.Peek("tokens:alice", time.Minute)
	if count != 0 {
		t.Errorf("Peek() on empty store count = %d, want 0", count)
	}
	if !reset.Equal(now.Add(time.Minute)) {
		t.Errorf("Peek() on empty store reset = %v, want %v", reset, now.Add(time.Minute))
	}

	s.Take("tokens:alice", 42, time.Minute)
	count, _ = s.Peek("tokens:alice", time.Minute)
	if count != 42 {
		t.Errorf("Peek() count = %d, want 42", count)
	}

	// Peek must not charge.
	count, _ = s.Peek("tokens:alice", time.Minute)
	if count != 42 {
		t.Errorf("repeated Peek() count = %d, want 42", count)
	}
}

func TestStore_Sweep(t *testing.T) {
	now := testStart
	s := NewStore()
	s.now = func() time.Time { return now }

	s.Take("requests:old", 1, time.Minute)
	now = testStart.Add(30 * time.Second)
	s.Take("requests:new", 1, time.Minute)

	now = testStart.Add(70 * time.Second)
	s.Sweep()

	if got := s.Len(); got != 1 {
		t.Errorf("Len() after Sweep() = %d, want 1", got)
	}
	count, _ := s.Peek("requests:new", time.Minute)
	if count != 1 {
		t.Errorf("Peek(requests:new) after Sweep() = %d, want 1", count)
	}
}

func TestLimiter_Allow_Requests(t *testing.T) {
	now := testStart
	l := NewLimiter()
	l.store.now = func() time.Time { return now }

	limit := Limit{RPM: 2, TPM: 1000}

	res, err := l.Allow("alice", limit, 10)
	if err != nil {
		t.Fatalf("first Allow() error = %v", err)
	}
	if res.Requests.Remaining != 1 {
		t.Errorf("first Allow() requests remaining = %d, want 1", res.Requests.Remaining)
	}

	res, err = l.Allow("alice", limit, 10)
	if err != nil {
		t.Fatalf("second Allow() error = %v", err)
	}
	if res.Requests.Remaining != 0 {
		t.Errorf("second Allow() requests remaining = %d, want 0", res.Requests.Remaining)
	}

	res, err = l.Allow("alice", limit, 10)
	if err == nil {
		t.Fatal("third Allow() error = nil, want rate limit rejection")
	}
	apiErr := domain.AsAPIError(err)
	if apiErr.Type != domain.ErrorTypeRateLimit {
		t.Errorf("rejection type = %s, want %s", apiErr.Type, domain.ErrorTypeRateLimit)
	}
	if apiErr.RateLimit == nil {
		t.Fatal("rejection carries no rate limit detail")
	}
	if apiErr.RateLimit.Limit != 2 {
		t.Errorf("rejection limit = %d, want 2", apiErr.RateLimit.Limit)
	}
	if apiErr.RateLimit.Window != time.Minute {
		t.Errorf("rejection window = %v, want 1m", apiErr.RateLimit.Window)
	}
	if !apiErr.RateLimit.Reset.Equal(testStart.Add(time.Minute)) {
		t.Errorf("rejection reset = %v, want %v", apiErr.RateLimit.Reset, testStart.Add(time.Minute))
	}
	// Headers are still reported on rejection, for both dimensions.
	if res == nil || res.Requests.Remaining != 0 {
		t.Errorf("rejection result = %+v, want requests remaining 0", res)
	}
	if res.Tokens.Limit != 1000 {
		t.Errorf("rejection tokens limit = %d, want 1000", res.Tokens.Limit)
	}
}

func TestLimiter_Allow_Tokens(t *testing.T) {
	now := testStart
	l := NewLimiter()
	l.store.now = func() time.Time { return now }

	limit := Limit{RPM: 100, TPM: 100}

	res, err := l.Allow("alice", limit, 60)
	if err != nil {
		t.Fatalf("first Allow() error = %v", err)
	}
	if res.Tokens.Remaining != 40 {
		t.Errorf("first Allow() tokens remaining = %d, want 40", res.Tokens.Remaining)
	}

	_, err = l.Allow("alice", limit, 60)
	if err == nil {
		t.Fatal("second Allow() error = nil, want token rejection")
	}

	// The rejected estimate stays counted; even a one-token request is
	// now over budget.
	_, err = l.Allow("alice", limit, 1)
	if err == nil {
		t.Fatal("Allow() after overshoot error = nil, want token rejection")
	}
	apiErr := domain.AsAPIError(err)
	if apiErr.RateLimit == nil || apiErr.RateLimit.Limit != 100 {
		t.Errorf("rejection detail = %+v, want token limit 100", apiErr.RateLimit)
	}
}

func TestLimiter_Allow_RequestRejectionDoesNotChargeTokens(t *testing.T) {
	now := testStart
	l := NewLimiter()
	l.store.now = func() time.Time { return now }

	limit := Limit{RPM: 1, TPM: 100}

	if _, err := l.Allow("alice", limit, 10); err != nil {
		t.Fatalf("first Allow() error = %v", err)
	}

	res, err := l.Allow("alice", limit, 10)
	if err == nil {
		t.Fatal("second Allow() error = nil, want request rejection")
	}
	if res.Tokens.Remaining != 90 {
		t.Errorf("tokens remaining after request rejection = %d, want 90", res.Tokens.Remaining)
	}

	count, _ := l.store.Peek(tokensKey("alice"), l.window)
	if count != 10 {
		t.Errorf("token window after request rejection = %d, want 10", count)
	}
}

func TestLimiter_Allow_WindowReset(t *testing.T) {
	now := testStart
	l := NewLimiter()
	l.store.now = func() time.Time { return now }

	limit := Limit{RPM: 1, TPM: 100}

	if _, err := l.Allow("alice", limit, 10); err != nil {
		t.Fatalf("first Allow() error = %v", err)
	}
	if _, err := l.Allow("alice", limit, 10); err == nil {
		t.Fatal("second Allow() error = nil, want rejection")
	}

	now = testStart.Add(61 * time.Second)
	res, err := l.Allow("alice", limit, 10)
	if err != nil {
		t.Fatalf("Allow() in fresh window error = %v", err)
	}
	if res.Requests.Remaining != 0 {
		t.Errorf("fresh window requests remaining = %d, want 0", res.Requests.Remaining)
	}
	if res.Tokens.Remaining != 90 {
		t.Errorf("fresh window tokens remaining = %d, want 90", res.Tokens.Remaining)
	}
}

func TestLimiter_Allow_DisabledDimensions(t *testing.T) {
	l := NewLimiter()

	// No budgets configured: everything is admitted.
	for i := 0; i < 50; i++ {
		if _, err := l.Allow("alice", Limit{}, 1000); err != nil {
			t.Fatalf("Allow() with no limits error = %v", err)
		}
	}
}

func TestIPLimiter_Allow(t *testing.T) {
	now := testStart
	l := NewIPLimiter(3, time.Minute)
	l.store.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := l.Allow("203.0.113.7"); err != nil {
			t.Fatalf("Allow() %d error = %v", i+1, err)
		}
	}
	if err := l.Allow("203.0.113.7"); err == nil {
		t.Fatal("Allow() over limit error = nil, want rejection")
	}

	// Other addresses are unaffected.
	if err := l.Allow("203.0.113.8"); err != nil {
		t.Errorf("Allow() for second address error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := l.Allow("203.0.113.7"); err != nil {
		t.Errorf("Allow() in fresh window error = %v", err)
	}
}

func TestIPLimiter_Defaults(t *testing.T) {
	l := NewIPLimiter(0, 0)
	if l.limit != DefaultIPLimit {
		t.Errorf("limit = %d, want %d", l.limit, DefaultIPLimit)
	}
	if l.window != DefaultIPWindow {
		t.Errorf("window = %v, want %v", l.window, DefaultIPWindow)
	}
}
