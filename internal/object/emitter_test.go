package object

import (
	"testing"

	"github.com/lightning-js/threadx/internal/buffer"
)

func TestEmitInvokesLocalListenersInOrder(t *testing.T) {
	so, _ := newPair(t)

	var calls []string
	so.On("greet", func(_ *SharedObject, data any) { calls = append(calls, "first:"+data.(string)) })
	so.On("greet", func(_ *SharedObject, data any) { calls = append(calls, "second:"+data.(string)) })

	so.Emit("greet", "hi", EmitOptions{LocalOnly: true})

	want := []string{"first:hi", "second:hi"}
	if len(calls) != len(want) {
		t.Fatalf("got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("got %v, want %v", calls, want)
		}
	}
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	so, _ := newPair(t)

	var n int
	so.Once("tick", func(_ *SharedObject, data any) { n++ })

	so.Emit("tick", nil, EmitOptions{LocalOnly: true})
	so.Emit("tick", nil, EmitOptions{LocalOnly: true})
	so.Emit("tick", nil, EmitOptions{LocalOnly: true})

	if n != 1 {
		t.Fatalf("Once listener fired %d times, want 1", n)
	}
}

func TestOffStopsFurtherDelivery(t *testing.T) {
	so, _ := newPair(t)

	var n int
	sub := so.On("tick", func(_ *SharedObject, data any) { n++ })
	so.Emit("tick", nil, EmitOptions{LocalOnly: true})
	so.Off(sub)
	so.Emit("tick", nil, EmitOptions{LocalOnly: true})

	if n != 1 {
		t.Fatalf("listener fired %d times after Off, want 1", n)
	}
}

func TestEmitForwardsToRouterUnlessLocalOnly(t *testing.T) {
	schema := testSchema()
	region, _ := buffer.NewMmapRegion(schema.TotalSize)
	buf := buffer.New(schema, region, 1)
	q := NewQueue()
	router := &noopRouter{}
	so := New(buf, 1, q, router, nil)

	so.Emit("greet", "hi")
	if len(router.emitted) != 1 || router.emitted[0] != "greet" {
		t.Fatalf("expected EmitToPeer called once with greet, got %v", router.emitted)
	}

	so.Emit("silent", "hi", EmitOptions{LocalOnly: true})
	if len(router.emitted) != 1 {
		t.Fatalf("LocalOnly emit should not reach router, got %v", router.emitted)
	}
}
