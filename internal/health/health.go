package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
)

// Check is one dependency readiness test.
type Check struct {
	Name string
	OK   func() bool
}

// Counter is a number reported on /healthz, such as open incidents.
type Counter struct {
	Name  string
	Value func() int64
}

// Route is an extra GET endpoint served next to the health routes.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
}

type Config struct {
	Network  *entities.Network
	Stats    *stats.Statistic
	Gatherer prometheus.Gatherer
	Checks   []Check
	Counters []Counter
	Routes   []Route
	Logger   *log.Logger
}

type Handler struct {
	cfg Config
	log *log.Logger
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{cfg: cfg, log: cfg.Logger}
}

// Router serves /healthz, /readyz, /metrics and the object state under
// /objects. References contain slashes, so the object route is a wildcard.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/objects", h.objects)
	r.Get("/objects/*", h.object)
	for _, rt := range h.cfg.Routes {
		r.Get(rt.Pattern, rt.Handler)
	}
	return r
}

// Ready reports whether every check passes.
func (h *Handler) Ready() bool {
	for _, c := range h.cfg.Checks {
		if !c.OK() {
			return false
		}
	}
	return true
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status        string           `json:"status"`
		Checks        map[string]bool  `json:"checks"`
		NotResponding []int            `json:"not_responding_devices"`
		Totals        map[string]int64 `json:"totals"`
		Counters      map[string]int64 `json:"counters,omitempty"`
	}
	st := status{
		Checks:        map[string]bool{},
		NotResponding: h.cfg.Stats.NotResponding(),
		Totals:        h.cfg.Stats.Totals(),
	}
	if len(h.cfg.Counters) > 0 {
		st.Counters = map[string]int64{}
		for _, c := range h.cfg.Counters {
			st.Counters[c.Name] = c.Value()
		}
	}
	passed := 0
	for _, c := range h.cfg.Checks {
		ok := c.OK()
		st.Checks[c.Name] = ok
		if ok {
			passed++
		}
	}
	switch {
	case passed == len(h.cfg.Checks):
		st.Status = "ok"
	case passed > 0:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	ready := h.Ready()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}

type objectView struct {
	Reference    string         `json:"reference"`
	DeviceID     int            `json:"device_id"`
	ObjectType   string         `json:"object_type"`
	ObjectID     int            `json:"object_id"`
	InAlarm      bool           `json:"in_alarm"`
	Fault        bool           `json:"fault"`
	Overridden   bool           `json:"overridden"`
	OutOfService bool           `json:"out_of_service"`
	Properties   map[string]any `json:"properties,omitempty"`
}

func view(o *entities.TrackedObject, withProps bool) objectView {
	f := o.Flags()
	v := objectView{
		Reference:    o.Reference,
		DeviceID:     o.DeviceID,
		ObjectType:   o.Type.String(),
		ObjectID:     o.ID,
		InAlarm:      f.InAlarm,
		Fault:        f.Fault,
		Overridden:   f.Overridden,
		OutOfService: f.OutOfService,
	}
	if withProps {
		v.Properties = map[string]any{}
		for k, val := range o.Snapshot() {
			v.Properties[string(k)] = val
		}
	}
	return v
}

func (h *Handler) objects(w http.ResponseWriter, r *http.Request) {
	abnormal := r.URL.Query().Get("abnormal") == "true"
	out := []objectView{}
	for _, o := range h.cfg.Network.Objects() {
		if abnormal && !o.Flags().Abnormal() {
			continue
		}
		out = append(out, view(o, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) object(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	o, ok := h.cfg.Network.Object(ref)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown object " + ref})
		return
	}
	writeJSON(w, http.StatusOK, view(o, true))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Watch keeps the overall serving status of the gRPC health service in
// line with Ready until ctx is done, then marks it not serving.
func (h *Handler) Watch(ctx context.Context, hs *grpchealth.Server, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	update := func() {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if h.Ready() {
			st = healthpb.HealthCheckResponse_SERVING
		}
		if st != last {
			h.log.Printf("health: serving status %s", st)
			last = st
		}
		hs.SetServingStatus("", st)
	}
	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
