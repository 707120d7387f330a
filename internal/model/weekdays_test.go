package model

import "testing"

func TestWeekdayMaskDefaultEncoding(t *testing.T) {
	m := DefaultWeekdayMask()
	if got := m.String(); got != "1111100" {
		t.Fatalf("default mask %q, want 1111100", got)
	}
}

func TestWeekdayMaskToggleWeekend(t *testing.T) {
	m := DefaultWeekdayMask().Set(Saturday, true).Set(Sunday, true)
	if got := m.String(); got != "1111111" {
		t.Fatalf("mask %q, want 1111111", got)
	}
}

func TestWeekdayMaskRoundTrip(t *testing.T) {
	for _, s := range []string{"0000000", "1111100", "1010101", "0000001"} {
		m, err := ParseWeekdayMask(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := m.String(); got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestWeekdayMaskParseRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "111110", "11111000", "111110x"} {
		if _, err := ParseWeekdayMask(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
