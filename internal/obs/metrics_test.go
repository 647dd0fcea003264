package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/":                         "/",
		"/metrics":                  "/metrics",
		"/clientes":                 "/clientes",
		"/clientes/":                "/clientes",
		"/clientes/42":              "/clientes/:id",
		"/ventas/7?limit=10":        "/ventas/:id",
		"/ventas?limit=10&offset=5": "/ventas",
		"/monedas/abc":              "/monedas/abc",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	Init()

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clientes/981", nil))
	ObserveDecision("read", "ventas", false)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",path="/clientes/:id",status="404"}`,
		`authz_decisions_total{action="read",outcome="deny",resource="ventas"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
	if strings.Contains(body, "/clientes/981") {
		t.Fatal("raw entity id leaked into metric labels")
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	ConfigureLogger(&buf, "debug", "json")
	defer ConfigureLogger(nil, "info", "json")

	LogRequest(map[string]any{"method": "GET", "status": 200})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, buf.String())
	}
	for _, key := range []string{"ts", "level", "msg", "method", "status"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}
