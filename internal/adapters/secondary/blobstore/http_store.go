package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStore writes objects to an S3-compatible gateway over plain HTTP PUT
// and derives the public URL from the configured base.
type HTTPStore struct {
	client    *http.Client
	uploadURL string
	publicURL string
	token     string
}

// NewHTTPStore creates a blob store client. publicURL defaults to uploadURL
// when empty; a non-empty token is sent as a bearer credential.
func NewHTTPStore(uploadURL, publicURL, token string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if publicURL == "" {
		publicURL = uploadURL
	}
	return &HTTPStore{
		client:    &http.Client{Timeout: timeout},
		uploadURL: strings.TrimRight(uploadURL, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
		token:     token,
	}
}

// Put stores the payload under key and returns its public URL.
func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	target := s.uploadURL + "/" + strings.TrimLeft(key, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building blob request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", key, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("uploading blob %s: unexpected status %d", key, resp.StatusCode)
	}

	return s.publicURL + "/" + strings.TrimLeft(key, "/"), nil
}
