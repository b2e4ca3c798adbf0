package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
)

const testSecret = "whsec_test_secret"

// signHeader builds a valid signature header for the given body and timestamp.
func signHeader(t *testing.T, secret string, ts int64, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v0=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestSignatureVerifier_Verify(t *testing.T) {
	body := []byte(`{"type":"post_call_transcription","data":{"agent_id":"agent_1"}}`)

	t.Run("valid signature within tolerance", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		header := signHeader(t, testSecret, time.Now().Add(-10*time.Minute).Unix(), body)

		event, err := v.Verify(body, header)

		require.NoError(t, err)
		assert.Equal(t, "post_call_transcription", event["type"])
	})

	t.Run("future timestamp is not rejected", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		header := signHeader(t, testSecret, time.Now().Add(10*time.Minute).Unix(), body)

		_, err := v.Verify(body, header)

		require.NoError(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		v := services.NewSignatureVerifier("")
		header := signHeader(t, testSecret, time.Now().Unix(), body)

		_, err := v.Verify(body, header)

		assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
	})

	t.Run("missing header", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)

		_, err := v.Verify(body, "")

		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
	})

	t.Run("header without v0 component", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)

		_, err := v.Verify(body, fmt.Sprintf("t=%d", time.Now().Unix()))

		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
	})

	t.Run("header without t component", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)

		_, err := v.Verify(body, "v0=deadbeef")

		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		header := signHeader(t, testSecret, time.Now().Add(-40*time.Minute).Unix(), body)

		_, err := v.Verify(body, header)

		assert.ErrorIs(t, err, apperrors.ErrRequestExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		header := signHeader(t, "other_secret", time.Now().Unix(), body)

		_, err := v.Verify(body, header)

		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
	})

	t.Run("single flipped body byte invalidates the digest", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		header := signHeader(t, testSecret, time.Now().Unix(), body)

		tampered := append([]byte(nil), body...)
		tampered[10] ^= 0x01

		_, err := v.Verify(tampered, header)

		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
	})

	t.Run("valid signature over invalid json", func(t *testing.T) {
		v := services.NewSignatureVerifier(testSecret)
		notJSON := []byte("not json at all")
		header := signHeader(t, testSecret, time.Now().Unix(), notJSON)

		_, err := v.Verify(notJSON, header)

		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
	})
}
