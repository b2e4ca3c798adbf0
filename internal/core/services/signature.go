package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
)

// signatureTolerance is how far in the past a signed timestamp may be.
// Future timestamps are not rejected; only past-side expiry is enforced.
const signatureTolerance = 30 * time.Minute

// SignatureVerifier validates the freshness and authenticity of inbound
// webhook events. Pure validation, no side effects.
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier creates a verifier for the given shared secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{
		secret:    []byte(secret),
		tolerance: signatureTolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the raw request body and, on
// success, returns the parsed JSON event object.
//
// The header has the form "t=<unix-seconds>,v0=<hex-hmac>". The digest is
// HMAC-SHA256 over "<t>." followed by the raw body bytes. It must be computed
// over the bytes as received: re-serializing parsed JSON is not guaranteed to
// reproduce what the sender signed.
func (v *SignatureVerifier) Verify(body []byte, header string) (map[string]any, error) {
	if len(v.secret) == 0 {
		return nil, apperrors.ErrConfigurationMissing
	}

	timestamp, signature, ok := parseSignatureHeader(header)
	if !ok {
		return nil, apperrors.ErrSignatureInvalid
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, apperrors.ErrSignatureInvalid
	}
	if v.now().Unix()-ts > int64(v.tolerance.Seconds()) {
		return nil, apperrors.ErrRequestExpired
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, apperrors.ErrSignatureInvalid
	}

	var event map[string]any
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, apperrors.ErrMalformedPayload
	}
	return event, nil
}

// parseSignatureHeader splits "t=...,v0=..." into its components. Both parts
// must be present; ordering and extra components are tolerated.
func parseSignatureHeader(header string) (timestamp, signature string, ok bool) {
	if header == "" {
		return "", "", false
	}
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = part
		}
	}
	if timestamp == "" || signature == "" {
		return "", "", false
	}
	return timestamp, signature, true
}
