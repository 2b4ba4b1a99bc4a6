package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewServerMiddlewareStack(t *testing.T) {
	s := NewServer(zerolog.Nop())

	// RequestID, RealIP, Logger, Recoverer, Timeout.
	if got := len(s.Router.Middlewares()); got != 5 {
		t.Fatalf("ожидали 5 middleware, получили %d", got)
	}
}

func TestServerRecoversFromPanic(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	s.Router.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500 после паники, получили %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидали 204, получили %d", rec.Code)
	}
}
