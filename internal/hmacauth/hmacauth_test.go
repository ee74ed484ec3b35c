package hmacauth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func TestSignThenVerify(t *testing.T) {
	body := []byte(`{"amount":1000}`)
	signer := &Signer{Secret: "shared-secret", Now: fixedNow}
	verifier := &Verifier{Secret: "shared-secret", MaxSkew: time.Minute, Now: fixedNow}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", bytes.NewReader(body))
	signer.Sign(req, body)

	rec := httptest.NewRecorder()
	called := false
	verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("signed request rejected: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	verifier := &Verifier{Secret: "shared-secret", MaxSkew: time.Minute, Now: fixedNow}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("x")))
	req.Header.Set(DefaultTimestampHeader, "1700000000")
	req.Header.Set(DefaultSignatureHeader, "deadbeef")

	rec := httptest.NewRecorder()
	verifier.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	body := []byte("x")
	signer := &Signer{Secret: "s", Now: func() time.Time { return fixedNow().Add(-time.Hour) }}
	verifier := &Verifier{Secret: "s", MaxSkew: time.Minute, Now: fixedNow}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	signer.Sign(req, body)

	rec := httptest.NewRecorder()
	verifier.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestEmptySecretDisablesAuth(t *testing.T) {
	verifier := &Verifier{MaxSkew: time.Minute}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
}
