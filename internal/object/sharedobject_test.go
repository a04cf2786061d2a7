package object

import (
	"testing"
	"time"

	"github.com/lightning-js/threadx/internal/buffer"
)

func testSchema() *buffer.Schema {
	return buffer.BuildSchema("TEST", 0x54534554, []buffer.PropertyDef{
		{Name: "numProp1", Kind: buffer.KindNumber},
		{Name: "stringProp1", Kind: buffer.KindString},
	})
}

type noopRouter struct {
	forgotten []float64
	emitted   []string
}

func (r *noopRouter) ForgetSilently(so *SharedObject) { r.forgotten = append(r.forgotten, so.ID()) }
func (r *noopRouter) EmitToPeer(so *SharedObject, event string, data any) {
	r.emitted = append(r.emitted, event)
}

func newPair(t *testing.T) (*SharedObject, *SharedObject) {
	t.Helper()
	schema := testSchema()
	region, err := buffer.NewMmapRegion(schema.TotalSize)
	if err != nil {
		t.Fatalf("NewMmapRegion: %v", err)
	}
	bufA := buffer.New(schema, region, 1)
	bufB, err := buffer.Open(schema, region)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	qA, qB := NewQueue(), NewQueue()
	soA := New(bufA, 1, qA, &noopRouter{}, nil)
	soB := New(bufB, 2, qB, &noopRouter{}, nil)
	return soA, soB
}

func TestConvergesOnLastWrite(t *testing.T) {
	a, b := newPair(t)

	if err := a.Set("numProp1", 111.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := a.Set("numProp1", 999.0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := b.Get("numProp1").(float64); v == 999.0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("peer never converged to 999, last seen %v", b.Get("numProp1"))
}

func TestOnPropertyChangeNotFiredForOwnWrites(t *testing.T) {
	schema := testSchema()
	region, _ := buffer.NewMmapRegion(schema.TotalSize)
	buf := buffer.New(schema, region, 1)
	q := NewQueue()

	var fired int
	hooks := &recordingHooks{onChange: func(name string, nv, ov any) { fired++ }}
	so := New(buf, 1, q, &noopRouter{}, hooks)

	so.Set("numProp1", 5.0)
	time.Sleep(50 * time.Millisecond)

	if fired != 0 {
		t.Fatalf("onPropertyChange fired %d times for local-only writes, want 0", fired)
	}
}

func TestDestroyIsIdempotentAndForgetsOnce(t *testing.T) {
	schema := testSchema()
	region, _ := buffer.NewMmapRegion(schema.TotalSize)
	buf := buffer.New(schema, region, 1)
	q := NewQueue()
	router := &noopRouter{}
	so := New(buf, 1, q, router, nil)

	so.Destroy()
	so.Destroy() // second call must be a no-op

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !so.IsDestroyed() {
		time.Sleep(5 * time.Millisecond)
	}
	if !so.IsDestroyed() {
		t.Fatalf("object never finished destroying")
	}
	if len(router.forgotten) != 1 {
		t.Fatalf("ForgetSilently called %d times, want 1", len(router.forgotten))
	}
	if err := so.Set("numProp1", 1.0); err != ErrUseAfterDestroy {
		t.Fatalf("Set after destroy = %v, want ErrUseAfterDestroy", err)
	}
}

type recordingHooks struct {
	BaseHooks
	onChange func(name string, newValue, oldValue any)
}

func (h *recordingHooks) OnPropertyChange(name string, newValue, oldValue any) {
	if h.onChange != nil {
		h.onChange(name, newValue, oldValue)
	}
}
