package store

import (
	"context"
	"testing"
)

func TestGetProperty_Absent(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.GetProperty(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetProperty() failed: %v", err)
	}
	if ok {
		t.Error("GetProperty() reported a missing property as present")
	}
}

func TestUpsertProperty_Types(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		typ   PropertyType
		value any
		want  any
	}{
		{"label", PropertyText, "hello <world>", "hello <world>"},
		{"count", PropertyInteger, int64(1736121600000), int64(1736121600000)},
		{"small", PropertyInteger, 7, int64(7)},
		{"ratio", PropertyReal, 0.25, 0.25},
	}

	for _, tc := range cases {
		if err := s.UpsertProperty(ctx, tc.name, tc.typ, tc.value); err != nil {
			t.Fatalf("UpsertProperty(%s) failed: %v", tc.name, err)
		}
		p, ok, err := s.GetProperty(ctx, tc.name)
		if err != nil || !ok {
			t.Fatalf("GetProperty(%s) = ok %v, err %v", tc.name, ok, err)
		}
		if p.Type != tc.typ || p.Value != tc.want {
			t.Errorf("property %s = (%s, %v), want (%s, %v)", tc.name, p.Type, p.Value, tc.typ, tc.want)
		}
	}
}

func TestUpsertProperty_TypeMismatch(t *testing.T) {
	s := createTestStore(t)

	if err := s.UpsertProperty(context.Background(), "x", PropertyInteger, "nope"); err == nil {
		t.Error("expected error for string value on integer property")
	}
}

func TestUpsertProperty_Overwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.UpsertProperty(ctx, "x", PropertyInteger, int64(5)); err != nil {
		t.Fatalf("UpsertProperty() failed: %v", err)
	}
	if err := s.UpsertProperty(ctx, "x", PropertyInteger, int64(3)); err != nil {
		t.Fatalf("UpsertProperty() failed: %v", err)
	}

	p, _, err := s.GetProperty(ctx, "x")
	if err != nil {
		t.Fatalf("GetProperty() failed: %v", err)
	}
	if v, _ := p.Int64(); v != 3 {
		t.Errorf("value = %d, want 3 (plain upsert overwrites)", v)
	}
}

func TestAdvanceIntProperty_NeverRegresses(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	steps := []struct {
		candidate    int64
		wantAdvanced bool
		wantValue    int64
	}{
		{2000, true, 2000},  // absent -> insert
		{3000, true, 3000},  // later -> update
		{1000, false, 3000}, // earlier -> ignored
		{3000, false, 3000}, // equal -> ignored
		{4000, true, 4000},
	}

	for i, step := range steps {
		advanced, err := s.AdvanceIntProperty(ctx, "os.lastFetchTime", step.candidate)
		if err != nil {
			t.Fatalf("step %d: AdvanceIntProperty() failed: %v", i, err)
		}
		if advanced != step.wantAdvanced {
			t.Errorf("step %d: advanced = %v, want %v", i, advanced, step.wantAdvanced)
		}

		p, ok, err := s.GetProperty(ctx, "os.lastFetchTime")
		if err != nil || !ok {
			t.Fatalf("step %d: GetProperty() = ok %v, err %v", i, ok, err)
		}
		if v, _ := p.Int64(); v != step.wantValue {
			t.Errorf("step %d: value = %d, want %d", i, v, step.wantValue)
		}
	}
}

func TestListProperties_Suffix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"os.lastFetchTime", "jira.lastFetchTime"} {
		if _, err := s.AdvanceIntProperty(ctx, name, 1); err != nil {
			t.Fatalf("AdvanceIntProperty(%s) failed: %v", name, err)
		}
	}
	if err := s.UpsertProperty(ctx, "ui.theme", PropertyText, "dark"); err != nil {
		t.Fatalf("UpsertProperty() failed: %v", err)
	}

	props, err := s.ListProperties(ctx, ".lastFetchTime")
	if err != nil {
		t.Fatalf("ListProperties() failed: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("len(props) = %d, want 2", len(props))
	}
	if props[0].Name != "jira.lastFetchTime" || props[1].Name != "os.lastFetchTime" {
		t.Errorf("props not ordered by name: %+v", props)
	}

	all, err := s.ListProperties(ctx, "")
	if err != nil {
		t.Fatalf("ListProperties() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}
