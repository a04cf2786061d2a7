package buffer

import (
	"reflect"
	"testing"
)

func TestBuildSchemaAlignmentAndRounding(t *testing.T) {
	s := BuildSchema("ABCD", 0x44434241, []PropertyDef{
		{Name: "n", Kind: KindNumber},
		{Name: "i", Kind: KindInt32},
		{Name: "s", Kind: KindString},
		{Name: "b", Kind: KindBool},
	})

	want := []struct {
		name   string
		offset int
		size   int
	}{
		{"n", 40, 8},
		{"i", 48, 4},
		{"s", 52, 512},
		{"b", 564, 4},
	}
	for i, w := range want {
		pd := s.Properties[i]
		if pd.Name != w.name || pd.ByteOffset != w.offset || pd.ByteSize != w.size {
			t.Fatalf("property %d = %+v, want name=%s offset=%d size=%d", i, pd, w.name, w.offset, w.size)
		}
		if pd.PropNum != i {
			t.Fatalf("property %d PropNum = %d, want %d", i, pd.PropNum, i)
		}
	}

	if s.TotalSize%8 != 0 {
		t.Fatalf("TotalSize %d not a multiple of 8", s.TotalSize)
	}
	if s.TotalSize < 564+4 {
		t.Fatalf("TotalSize %d too small to hold last property", s.TotalSize)
	}
}

func TestSchemaForMemoizes(t *testing.T) {
	calls := 0
	build := func() *Schema {
		calls++
		return BuildSchema("X", 1, nil)
	}
	type marker struct{}
	mt := reflect.TypeOf(marker{})
	t1 := SchemaFor(mt, build)
	t2 := SchemaFor(mt, build)
	if t1 != t2 {
		t.Fatalf("SchemaFor returned distinct schemas for the same type")
	}
	if calls != 1 {
		t.Fatalf("build called %d times, want 1", calls)
	}
}
