package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealHTTPClient_GetBytes(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"name":"Token"}`))
		}))
		defer srv.Close()

		body, err := NewHTTPClient(time.Second).GetBytes(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Token"}`, string(body))
	})

	t.Run("not found is permanent", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewHTTPClient(time.Second).GetBytes(context.Background(), srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rate limited then ok", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := NewHTTPClient(time.Second).GetBytes(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(body))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("rate limited until deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		_, err := NewHTTPClient(time.Second).GetBytes(ctx, srv.URL)
		assert.Error(t, err)
	})

	t.Run("rate limited retries stop after the elapsed budget", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := &RealHTTPClient{
			client:         &http.Client{Timeout: time.Second},
			maxInterval:    50 * time.Millisecond,
			maxElapsedTime: 300 * time.Millisecond,
		}

		done := make(chan error, 1)
		go func() {
			_, err := c.GetBytes(context.Background(), srv.URL)
			done <- err
		}()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
		case <-time.After(5 * time.Second):
			t.Fatal("GetBytes kept retrying past its elapsed budget")
		}
	})

	t.Run("transport error is retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				conn, _, err := w.(http.Hijacker).Hijack()
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := NewHTTPClient(time.Second).GetBytes(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(body))
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestRealJSON_Canonicalize(t *testing.T) {
	out, err := NewJSON().Canonicalize([]byte(`{"b":1, "a":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(out))
}
