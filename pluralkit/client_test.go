package pluralkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.RateLimit = 0
	opts.UserAgent = "pk-test"
	return opts
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("://invalid", testOptions())
	assert.Error(t, err)

	_, err = NewClient("ftp://pk.example", testOptions())
	assert.Error(t, err)

	_, err = NewClient("https://", testOptions())
	assert.Error(t, err)

	assert.NoError(t, ValidateBaseURL("http://localhost:5000"))
}

func TestGetMessage_Found(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v2/messages/200", r.URL.Path)
		assert.Equal(t, "pk-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"timestamp": "2024-01-01T00:00:00Z",
			"id": "200",
			"original": "100",
			"sender": "7",
			"channel": "5",
			"guild": "1",
			"member": {"id": "abcde", "name": "Alex"},
			"unknown_field": true
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", testOptions())
	require.NoError(t, err)

	record, err := c.GetMessage(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, "200", record.ID)
	assert.Equal(t, "100", record.Original)
	assert.Equal(t, "7", record.Sender)
	require.NotNil(t, record.Member)
	assert.Equal(t, "Alex", record.Member.Name)

	// Second lookup is served from the cache.
	_, err = c.GetMessage(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetMessage_NotFoundIsNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testOptions())
	require.NoError(t, err)

	_, err = c.GetMessage(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)

	record, err := c.GetMessageOrNil(context.Background(), "1")
	assert.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetMessage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testOptions())
	require.NoError(t, err)

	record, err := c.GetMessageOrNil(context.Background(), "1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Nil(t, record)
}

func TestGetMessage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testOptions())
	require.NoError(t, err)

	_, err = c.GetMessage(context.Background(), "1")
	assert.Error(t, err)
}

func TestGetMessage_ConcurrentLookupsShareRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"id": "2", "original": "1"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := c.GetMessage(context.Background(), "2")
			if assert.NoError(t, err) {
				assert.Equal(t, "1", record.Original)
			}
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, timeout, tick)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGetMessage_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.RateLimit = 0.001
	opts.Burst = 1
	c, err := NewClient(srv.URL, opts)
	require.NoError(t, err)

	_, err = c.GetMessage(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetMessage(ctx, "2")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRegistry_MemoizesPerURL(t *testing.T) {
	r := NewRegistry(testOptions())

	a, err := r.Client("https://a.example")
	require.NoError(t, err)
	a2, err := r.Client("https://a.example")
	require.NoError(t, err)
	b, err := r.Client("https://b.example")
	require.NoError(t, err)

	assert.Same(t, a, a2)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())

	_, err = r.Client("://bad")
	assert.Error(t, err)
	assert.Equal(t, 2, r.Len())
}
