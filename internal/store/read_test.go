package store

import (
	"context"
	"testing"

	"github.com/roach88/timetrace/internal/event"
)

func TestSelectSince_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.SelectSince(context.Background(), "os", 0)
	if err != nil {
		t.Fatalf("SelectSince() failed: %v", err)
	}
	if events == nil {
		t.Error("SelectSince() returned nil, want empty slice")
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}

func TestSelectSince_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed := []event.Event{
		createTestEvent("os", event.KindLogoff, 3000),
		createTestEvent("os", event.KindBoot, 0),
		createTestEvent("os", event.KindLogon, 1000),
		createTestEvent("os", event.KindStandbyEnter, 1000),
		createTestEvent("jira", event.KindIssueUpdated, 2000),
	}
	if _, err := s.InsertBatch(ctx, seed); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	events, err := s.SelectSince(ctx, "os", testTime+1000)
	if err != nil {
		t.Fatalf("SelectSince() failed: %v", err)
	}

	want := []event.Key{
		{Time: testTime + 1000, Name: event.KindLogon, Source: "os"},
		{Time: testTime + 1000, Name: event.KindStandbyEnter, Source: "os"},
		{Time: testTime + 3000, Name: event.KindLogoff, Source: "os"},
	}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d: %+v", len(events), len(want), events)
	}
	for i := range want {
		if events[i].Key() != want[i] {
			t.Errorf("events[%d] = %+v, want key %+v", i, events[i], want[i])
		}
	}
}

func TestSelectRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed := []event.Event{
		createTestEvent("os", event.KindBoot, 0),
		createTestEvent("jira", event.KindIssueCreated, 0),
		createTestEvent("mac", event.KindLogon, 1000),
		createTestEvent("os", event.KindShutdown, 9000),
	}
	if _, err := s.InsertBatch(ctx, seed); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	all, err := s.SelectRange(ctx, Range{})
	if err != nil {
		t.Fatalf("SelectRange() failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(all))
	}
	// Equal times order by source.
	if all[0].Source != "jira" || all[1].Source != "os" {
		t.Errorf("tie order = %s, %s; want jira, os", all[0].Source, all[1].Source)
	}

	bounded, err := s.SelectRange(ctx, Range{From: testTime + 1, To: testTime + 9000})
	if err != nil {
		t.Fatalf("SelectRange() failed: %v", err)
	}
	if len(bounded) != 1 || bounded[0].Source != "mac" {
		t.Errorf("bounded = %+v, want only the mac event", bounded)
	}

	filtered, err := s.SelectRange(ctx, Range{Sources: []string{"os", "mac"}})
	if err != nil {
		t.Fatalf("SelectRange() failed: %v", err)
	}
	if len(filtered) != 3 {
		t.Errorf("len(filtered) = %d, want 3", len(filtered))
	}
}
