package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// TransitionRecord is one stored transition as served by the query API.
type TransitionRecord struct {
	Reference  string `json:"reference"`
	Transition string `json:"transition"`
	Time       string `json:"time"`
}

type queryParams struct {
	Minutes   int
	Limit     int
	Timeout   time.Duration
	Reference string
}

func parseQuery(r *http.Request) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", 1440, 1, 7*24*60),
		Limit:     get("limit", 50, 1, 500),
		Timeout:   time.Duration(get("timeout_ms", 2000, 200, 5000)) * time.Millisecond,
		Reference: strings.TrimSpace(q.Get("reference")),
	}
}

func transitionsFlux(bucket string, p queryParams) string {
	filter := ""
	if p.Reference != "" {
		filter = fmt.Sprintf("\n  |> filter(fn: (r) => r.reference == %q)", p.Reference)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "count")%s
  |> keep(columns: ["_time","reference","transition"])
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, MeasurementTransition, filter, p.Limit)
}

// NewTransitionsHandler serves the latest stored transitions:
// GET /history/transitions?minutes=1440&limit=50[&reference=...]
func NewTransitionsHandler(influx influxdb2.Client, org, bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parseQuery(r)
		ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		res, err := influx.QueryAPI(org).Query(ctx, transitionsFlux(bucket, p))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]TransitionRecord, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			ref, _ := rec.ValueByKey("reference").(string)
			tr, _ := rec.ValueByKey("transition").(string)
			out = append(out, TransitionRecord{Reference: ref, Transition: tr, Time: rec.Time().UTC().Format(time.RFC3339)})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
