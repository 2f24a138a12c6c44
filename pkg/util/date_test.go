package util

import (
	"testing"
	"time"
)

func TestParseDayLayouts(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-05", "2024/03/05", "2024-03-05 17:45:00", "2024-03-05T23:59:59Z", " 2024-03-05 "} {
		got, ok := ParseDay(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v", s, got)
		}
	}
	if _, ok := ParseDay("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{"123.0": "123", " 42 ": "42", "ab.0": "ab.0", "7": "7"}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}
