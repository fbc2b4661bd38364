package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("COLLECTIBLES_TEST_VALUE", "  set  ")
	if got := Get("COLLECTIBLES_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("COLLECTIBLES_TEST_VALUE", "   ")
	if got := Get("COLLECTIBLES_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirst(t *testing.T) {
	t.Setenv("COLLECTIBLES_TEST_A", "")
	t.Setenv("COLLECTIBLES_TEST_B", "b")
	if got := First("none", "COLLECTIBLES_TEST_A", "COLLECTIBLES_TEST_B"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("none", "COLLECTIBLES_TEST_A"); got != "none" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
