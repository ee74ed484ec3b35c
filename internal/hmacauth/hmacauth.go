// Package hmacauth signs and verifies requests with a timestamped
// HMAC-SHA256 over the body.
package hmacauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSignatureHeader = "X-Request-Signature"
	DefaultTimestampHeader = "X-Request-Timestamp"
)

var (
	ErrMissingSignature = errors.New("missing request signature")
	ErrMissingTimestamp = errors.New("missing request timestamp")
	ErrStaleTimestamp   = errors.New("stale request timestamp")
	ErrInvalidSignature = errors.New("invalid request signature")
)

// ComputeSignature is the shared MAC: hex(HMAC-SHA256(secret, timestamp || body)).
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}

// Signer stamps outbound requests. Used by the biller client.
type Signer struct {
	Secret string
	Now    func() time.Time
}

// Sign sets the timestamp and signature headers for the given body.
// A Signer with an empty secret is a no-op.
func (s *Signer) Sign(req *http.Request, body []byte) {
	if s.Secret == "" {
		return
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	req.Header.Set(DefaultTimestampHeader, ts)
	req.Header.Set(DefaultSignatureHeader, ComputeSignature(s.Secret, ts, body))
}

// Verifier checks inbound requests. An empty secret disables verification.
type Verifier struct {
	Secret          string
	MaxSkew         time.Duration
	Now             func() time.Time
	SignatureHeader string
	TimestampHeader string
}

func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.verify(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) verify(r *http.Request) error {
	if v.Secret == "" {
		return nil
	}

	sigHeader := v.SignatureHeader
	if sigHeader == "" {
		sigHeader = DefaultSignatureHeader
	}
	tsHeader := v.TimestampHeader
	if tsHeader == "" {
		tsHeader = DefaultTimestampHeader
	}

	sig := r.Header.Get(sigHeader)
	if sig == "" {
		return ErrMissingSignature
	}
	tsValue := r.Header.Get(tsHeader)
	if tsValue == "" {
		return ErrMissingTimestamp
	}
	ts, err := strconv.ParseInt(tsValue, 10, 64)
	if err != nil {
		return ErrMissingTimestamp
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	reqTime := time.Unix(ts, 0)
	if now.Sub(reqTime) > v.MaxSkew || reqTime.Sub(now) > v.MaxSkew {
		return ErrStaleTimestamp
	}

	body, err := readBody(r)
	if err != nil {
		return err
	}

	expected := ComputeSignature(v.Secret, tsValue, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return body, nil
}
