package history

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

func TestParseQueryClamps(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/history/transitions?minutes=0&limit=9999&reference=+Site:AHU/T1+", nil)
	p := parseQuery(r)
	if p.Minutes != 1 || p.Limit != 500 || p.Timeout != 2*time.Second || p.Reference != "Site:AHU/T1" {
		t.Fatalf("params = %+v", p)
	}
	flux := transitionsFlux("bms", p)
	for _, want := range []string{`from(bucket: "bms")`, `r.reference == "Site:AHU/T1"`, MeasurementTransition, "limit(n:500)"} {
		if !strings.Contains(flux, want) {
			t.Fatalf("flux misses %q:\n%s", want, flux)
		}
	}
	if strings.Contains(transitionsFlux("bms", parseQuery(httptest.NewRequest(http.MethodGet, "/", nil))), "r.reference") {
		t.Fatal("reference filter without a reference")
	}
}

func TestTransitionsHandlerQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"internal error","message":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := influxdb2.NewClient(srv.URL, "token")
	defer client.Close()

	rec := httptest.NewRecorder()
	NewTransitionsHandler(client, "org", "bms")(rec, httptest.NewRequest(http.MethodGet, "/history/transitions", nil))
	if rec.Header().Get("X-Error") != "influx-query-error" || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("got %q %q", rec.Header().Get("X-Error"), rec.Body.String())
	}
}
