package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/audiosearch/internal/logger"
)

func TestWideEvent_LevelAndRoute(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(zap.New(core)))
	r.Get("/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		logpkg.FromContext(r.Context()).Debug("inside")
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	for _, path := range []string{"/documents/song-1", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	inside := logs.FilterMessage("inside").All()
	if len(inside) != 1 || inside[0].ContextMap()["request_id"] == "" {
		t.Fatalf("handler log missing request_id: %+v", inside)
	}

	events := logs.FilterMessage("http_request").All()
	if len(events) != 2 {
		t.Fatalf("got %d request events", len(events))
	}
	if events[0].Level != zapcore.WarnLevel {
		t.Errorf("404 level = %v, want warn", events[0].Level)
	}
	if got := events[0].ContextMap()["route"]; got != "/documents/{id}" {
		t.Errorf("route = %v", got)
	}
	if events[1].Level != zapcore.InfoLevel {
		t.Errorf("200 level = %v, want info", events[1].Level)
	}
	if got := events[1].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v", got)
	}
}

func TestStatusLevel(t *testing.T) {
	tests := map[int]zapcore.Level{
		200: zapcore.InfoLevel,
		304: zapcore.InfoLevel,
		422: zapcore.WarnLevel,
		503: zapcore.ErrorLevel,
	}
	for status, want := range tests {
		if got := statusLevel(status); got != want {
			t.Errorf("statusLevel(%d) = %v, want %v", status, got, want)
		}
	}
}
