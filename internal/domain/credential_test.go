package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeSubject(t *testing.T) {
	got, err := NormalizeSubject("  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("want alice@example.com, got %s", got)
	}
}

func TestNormalizeSubject_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "bad subject", "semi;colon", strings.Repeat("a", 255)} {
		if _, err := NormalizeSubject(s); !errors.Is(err, ErrInvalidSubject) {
			t.Errorf("NormalizeSubject(%q): want ErrInvalidSubject, got %v", s, err)
		}
	}
}
