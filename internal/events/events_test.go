package events

import (
	"testing"
)

func TestAppendAndTail(t *testing.T) {
	log := NewLog(t.TempDir())

	for _, typ := range []string{TypeDispatch, TypeProjectProgress, TypeProjectComplete} {
		if err := log.Append(typ, "fm-1", map[string]interface{}{"project": "p1"}); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	all, err := log.Tail(0)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Tail returned %d events, want 3", len(all))
	}
	if all[0].Type != TypeDispatch || all[2].Type != TypeProjectComplete {
		t.Errorf("Event order wrong: %v", all)
	}
	if all[0].Payload["project"] != "p1" {
		t.Errorf("Payload lost: %v", all[0].Payload)
	}

	last, err := log.Tail(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 1 || last[0].Type != TypeProjectComplete {
		t.Errorf("Tail(1) = %v", last)
	}
}

func TestTailMissingFile(t *testing.T) {
	log := NewLog(t.TempDir())
	all, err := log.Tail(10)
	if err != nil {
		t.Fatalf("Tail error: %v", err)
	}
	if all != nil {
		t.Errorf("Expected no events, got %v", all)
	}
}
