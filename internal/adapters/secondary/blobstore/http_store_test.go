package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStore_Put(t *testing.T) {
	t.Run("uploads and returns the public url", func(t *testing.T) {
		var (
			gotPath        string
			gotContentType string
			gotBody        []byte
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPut, r.Method)
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		store := NewHTTPStore(srv.URL, "https://cdn.example.com", "", time.Second)

		url, err := store.Put(context.Background(), "call-audio/agent_1/conv_1.mp3", []byte("mp3"), "audio/mpeg")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/call-audio/agent_1/conv_1.mp3", url)
		assert.Equal(t, "/call-audio/agent_1/conv_1.mp3", gotPath)
		assert.Equal(t, "audio/mpeg", gotContentType)
		assert.Equal(t, []byte("mp3"), gotBody)
	})

	t.Run("sends the bearer token when configured", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := NewHTTPStore(srv.URL, "", "store-token", time.Second)

		_, err := store.Put(context.Background(), "k.mp3", []byte("x"), "audio/mpeg")

		require.NoError(t, err)
		assert.Equal(t, "Bearer store-token", gotAuth)
	})

	t.Run("public url defaults to the upload url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := NewHTTPStore(srv.URL, "", "", time.Second)

		url, err := store.Put(context.Background(), "k.mp3", []byte("x"), "audio/mpeg")

		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/k.mp3", url)
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		store := NewHTTPStore(srv.URL, "", "", time.Second)

		_, err := store.Put(context.Background(), "k.mp3", []byte("x"), "audio/mpeg")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		store := NewHTTPStore(srv.URL, "", "", time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := store.Put(ctx, "k.mp3", []byte("x"), "audio/mpeg")

		require.Error(t, err)
	})
}
