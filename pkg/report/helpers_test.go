package report

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/adform-stats-client/internal/testutil"
	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a client against mock with millisecond backoffs.
func newTestClient(t *testing.T, mock *testutil.MockAdform) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("test-token")
	cfg.BaseURL = mock.URL()
	cfg.Retry = client.RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// scriptedSender answers successive calls with bodies in order, repeating
// the last one.
type scriptedSender struct {
	mu     sync.Mutex
	bodies []string
	err    error
	paths  []string

	// onCall runs before each answer with the 1-based call number.
	onCall func(n int)
}

func (s *scriptedSender) Send(_ context.Context, _, path string, _ any) (*client.Response, error) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	n := len(s.paths)
	body := s.bodies[len(s.bodies)-1]
	if n <= len(s.bodies) {
		body = s.bodies[n-1]
	}
	onCall := s.onCall
	s.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &client.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}, nil
}

func (s *scriptedSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

func repeat(body string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = body
	}
	return out
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

// newFakePoller returns a poller with a 1s interval and 60s budget on a fake clock.
func newFakePoller(sender Sender) (*Poller, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPoller(sender, PollerConfig{Interval: time.Second, AnomalyBudget: 60 * time.Second})
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}
