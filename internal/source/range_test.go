package source

import "testing"

func TestNextRange(t *testing.T) {
	got, err := NextRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (BlockRange{From: 100, To: 101}) {
		t.Fatalf("range mismatch: %+v", got)
	}
}

func TestNextRangeSingle(t *testing.T) {
	got, err := NextRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (BlockRange{From: 5, To: 5}) || got.Len() != 1 {
		t.Fatalf("range mismatch: %+v", got)
	}
}

func TestNextRangeClampsToLimit(t *testing.T) {
	got, err := NextRange(151, 160, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (BlockRange{From: 151, To: 160}) || got.Len() != 10 {
		t.Fatalf("range mismatch: %+v", got)
	}
}

func TestNextRangeInvalid(t *testing.T) {
	if _, err := NextRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := NextRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
