package history

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
)

type fakeAPI struct {
	mu     sync.Mutex
	points []*write.Point
	errs   chan error
}

func (f *fakeAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}
func (f *fakeAPI) Errors() <-chan error { return f.errs }
func (f *fakeAPI) Flush()               {}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fields(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func newObject(t *testing.T, typ string, pv any) *entities.TrackedObject {
	t.Helper()
	o, err := entities.NewTrackedObject(map[string]any{
		"77": "Site:B1/P1", "846": 200.0, "75": 3.0, "79": typ, "85": pv,
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestReadingPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := ReadingPoint(newObject(t, "analog-value", 21.5), at)
	if p.Name() != MeasurementPoint || !p.Time().Equal(at) {
		t.Fatalf("point %s at %v", p.Name(), p.Time())
	}
	tg := tags(p)
	if tg["reference"] != "Site:B1/P1" || tg["device_id"] != "200" || tg["object_type"] != "analog-value" {
		t.Fatalf("tags = %v", tg)
	}
	if f := fields(p); f["value"] != 21.5 || f["fault"] != false {
		t.Fatalf("fields = %v", f)
	}

	b := ReadingPoint(newObject(t, "binary-input", "active"), at)
	if f := fields(b); f["active"] != true {
		t.Fatalf("binary fields = %v", f)
	}
}

func TestWriterCountsAndErrors(t *testing.T) {
	api := &fakeAPI{errs: make(chan error, 1)}
	w := NewWriter(api, nil)
	o := newObject(t, "analog-input", 1.0)
	w.RecordReading(o, time.Now())
	w.RecordTransition(o, entities.ToFault, time.Now())

	if w.Count(MeasurementPoint) != 1 || w.Count(MeasurementTransition) != 1 {
		t.Fatalf("counts = %d/%d", w.Count(MeasurementPoint), w.Count(MeasurementTransition))
	}
	if tr := tags(api.points[1])["transition"]; tr != entities.ToFault.String() {
		t.Fatalf("transition tag = %q", tr)
	}
	if w.LastErrorAge() < time.Hour {
		t.Fatal("fresh writer reports a recent error")
	}

	api.errs <- errors.New("write refused")
	deadline := time.Now().Add(2 * time.Second)
	for w.LastErrorAge() > time.Minute {
		if time.Now().After(deadline) {
			t.Fatal("write error not tracked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(api.errs)
}

func TestNilWriter(t *testing.T) {
	var w *Writer
	w.RecordReading(newObject(t, "analog-input", 1.0), time.Now())
	w.Flush()
	if w.Count(MeasurementPoint) != 0 {
		t.Fatal("nil writer counted")
	}
}
