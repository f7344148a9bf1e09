package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/civicid/internal/metrics"
	"github.com/zarlcorp/core/pkg/zfilesystem"
)

var (
	stored  = address.MustParse("0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199")
	missing = address.MustParse("0xdD2FD4581271e230360230F9337D5c0430Bf44C0")
)

const testBase = "https://ids.example.org"

// brokenArtifacts fails every read with a non-missing error.
type brokenArtifacts struct{}

func (brokenArtifacts) Image(address.Address) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenArtifacts) Metadata(address.Address) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

// panickingArtifacts panics on every read.
type panickingArtifacts struct{}

func (panickingArtifacts) Image(address.Address) ([]byte, error)    { panic("boom") }
func (panickingArtifacts) Metadata(address.Address) ([]byte, error) { panic("boom") }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()

	store := artifact.New(
		artifact.Dir{FS: zfilesystem.NewMemFS()},
		artifact.Dir{FS: zfilesystem.NewMemFS()},
	)

	c := metadata.Composer{Clock: func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }}
	urls := metadata.URLs{Base: testBase}
	meta, err := metadata.Encode(c.Compose(stored, urls.ImageURL(stored), urls.ProfileURL(stored)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(stored, []byte("\x89PNG fake"), meta); err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	return New(store, urls, m, quietLogger()), m
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestRoutes(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	tests := []struct {
		name        string
		path        string
		status      int
		contentType string
		errCode     string
	}{
		{"health", "/health", http.StatusOK, "application/json", ""},
		{"metadata with ext", "/metadata/" + stored.Hex() + ".json", http.StatusOK, "application/json", ""},
		{"metadata lowercase", "/metadata/" + stored.Lower() + ".json", http.StatusOK, "application/json", ""},
		{"metadata without ext", "/metadata/" + stored.Hex(), http.StatusOK, "application/json", ""},
		{"metadata missing", "/metadata/" + missing.Hex() + ".json", http.StatusNotFound, "application/json", "not_found"},
		{"metadata invalid", "/metadata/0x1234.json", http.StatusBadRequest, "application/json", "invalid_address"},
		{"image", "/images/" + stored.Hex() + ".png", http.StatusOK, "image/png", ""},
		{"image missing", "/images/" + missing.Hex() + ".png", http.StatusNotFound, "application/json", "not_found"},
		{"image invalid", "/images/nope.png", http.StatusBadRequest, "application/json", "invalid_address"},
		{"profile", "/profile/" + stored.Hex(), http.StatusOK, "application/json", ""},
		{"profile missing", "/profile/" + missing.Hex(), http.StatusNotFound, "application/json", "not_found"},
		{"did", "/did/" + missing.Lower(), http.StatusOK, "application/json", ""},
		{"did invalid", "/did/0xZZ", http.StatusBadRequest, "application/json", "invalid_address"},
		{"unknown route", "/nowhere", http.StatusNotFound, "application/json", "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.path)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("content type = %q, want %q", ct, tt.contentType)
			}
			if tt.errCode != "" {
				if got := errorCode(t, rec); got != tt.errCode {
					t.Errorf("error = %q, want %q", got, tt.errCode)
				}
			}
		})
	}
}

func TestMetadataBody(t *testing.T) {
	s, _ := testServer(t)

	rec := do(t, s.Handler(), "/metadata/"+stored.Hex()+".json")

	m, err := metadata.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Properties.DID != stored.DID() {
		t.Errorf("did = %s", m.Properties.DID)
	}
	if m.Image != testBase+"/images/"+stored.Hex()+".png" {
		t.Errorf("image = %s", m.Image)
	}
}

func TestImageBody(t *testing.T) {
	s, _ := testServer(t)

	rec := do(t, s.Handler(), "/images/"+stored.Hex()+".png")

	if rec.Body.String() != "\x89PNG fake" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProfileBody(t *testing.T) {
	s, _ := testServer(t)

	rec := do(t, s.Handler(), "/profile/"+stored.Lower())

	var got ProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := ProfileResponse{
		Address:  stored.Hex(),
		DID:      "did:ethr:" + stored.Hex(),
		Image:    testBase + "/images/" + stored.Hex() + ".png",
		Metadata: testBase + "/metadata/" + stored.Hex() + ".json",
	}
	if got != want {
		t.Errorf("profile = %+v, want %+v", got, want)
	}
}

func TestDIDBody(t *testing.T) {
	s, _ := testServer(t)

	rec := do(t, s.Handler(), "/did/"+missing.Lower())

	var got DIDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DID != "did:ethr:"+missing.Hex() {
		t.Errorf("did = %s", got.DID)
	}
}

func TestStoreErrorIs500(t *testing.T) {
	s := New(brokenArtifacts{}, metadata.URLs{}, nil, quietLogger())

	rec := do(t, s.Handler(), "/metadata/"+stored.Hex()+".json")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := errorCode(t, rec); got != "internal_error" {
		t.Errorf("error = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	s := New(panickingArtifacts{}, metadata.URLs{}, nil, quietLogger())

	rec := do(t, s.Handler(), "/images/"+stored.Hex()+".png")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	t.Run("generated", func(t *testing.T) {
		rec := do(t, h, "/health")
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("X-Request-ID = %q, want abc-123", got)
		}
	})
}

func TestGetRequestIDEmpty(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID = %q, want empty", id)
	}
}

func TestRequestsCountedByRoute(t *testing.T) {
	s, m := testServer(t)
	h := s.Handler()

	do(t, h, "/metadata/"+stored.Hex()+".json")
	do(t, h, "/metadata/"+missing.Hex()+".json")
	do(t, h, "/metadata/"+missing.Lower()+".json")

	ok := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/metadata/{file}", "200"))
	if ok != 1 {
		t.Errorf("200 count = %v, want 1", ok)
	}
	notFound := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/metadata/{file}", "404"))
	if notFound != 2 {
		t.Errorf("404 count = %v, want 2", notFound)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	h := s.Handler()

	do(t, h, "/health")
	rec := do(t, h, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `civicid_http_requests_total{route="/health",status="200"} 1`) {
		t.Errorf("metrics output missing health counter:\n%s", rec.Body.String())
	}
}

func TestGenerateRouteDisabledByDefault(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/identities/"+missing.Hex(), nil))

	if rec.Code == http.StatusCreated {
		t.Fatal("generate route should not be mounted without a generator")
	}
}

func TestGenerate(t *testing.T) {
	store := artifact.New(
		artifact.Dir{FS: zfilesystem.NewMemFS()},
		artifact.Dir{FS: zfilesystem.NewMemFS()},
	)
	urls := metadata.URLs{Base: testBase}
	m := metrics.New()

	s := New(store, urls, m, quietLogger())
	s.Generator = &batch.Pipeline{
		Size:    32,
		URLs:    urls,
		Store:   store,
		Metrics: m,
		Logger:  quietLogger(),
	}
	h := s.Handler()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"valid", "/identities/" + missing.Lower(), http.StatusCreated},
		{"invalid", "/identities/0x12", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	// the generated identity is now served
	rec := do(t, h, "/profile/"+missing.Hex())
	if rec.Code != http.StatusOK {
		t.Errorf("profile after generate: status = %d", rec.Code)
	}
	rec = do(t, h, "/images/"+missing.Hex()+".png")
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("image content type = %q", ct)
	}

	if got := testutil.ToFloat64(m.IdentitiesGenerated); got != 1 {
		t.Errorf("generated = %v, want 1", got)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
