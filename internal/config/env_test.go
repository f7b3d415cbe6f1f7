package config

import (
	"testing"
	"time"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("AUDIT_TEST_STR", "set")
	if got := GetenvDefault("AUDIT_TEST_STR", "fallback"); got != "set" {
		t.Fatalf("unexpected value: %q", got)
	}
	if got := GetenvDefault("AUDIT_TEST_STR_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("AUDIT_TEST_INT", "42")
	if got := ParseIntEnv("AUDIT_TEST_INT", 7); got != 42 {
		t.Fatalf("unexpected value: %d", got)
	}
	t.Setenv("AUDIT_TEST_INT", "not-a-number")
	if got := ParseIntEnv("AUDIT_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback on bad value, got %d", got)
	}
}

func TestParseFloatEnv(t *testing.T) {
	t.Setenv("AUDIT_TEST_FLOAT", "0.85")
	if got := ParseFloatEnv("AUDIT_TEST_FLOAT", 0.1); got != 0.85 {
		t.Fatalf("unexpected value: %v", got)
	}
	if got := ParseFloatEnv("AUDIT_TEST_FLOAT_MISSING", 0.1); got != 0.1 {
		t.Fatalf("unexpected fallback: %v", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("AUDIT_TEST_DUR", "1m30s")
	if got := ParseDurationEnv("AUDIT_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("unexpected value: %v", got)
	}
	t.Setenv("AUDIT_TEST_DUR", "soon")
	if got := ParseDurationEnv("AUDIT_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("expected fallback on bad value, got %v", got)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, in := range []string{"true", "TRUE", "1", "yes", "on"} {
		if !ParseBoolString(in, false) {
			t.Fatalf("ParseBoolString(%q) = false, want true", in)
		}
	}
	for _, in := range []string{"false", "0", "no", "off"} {
		if ParseBoolString(in, true) {
			t.Fatalf("ParseBoolString(%q) = true, want false", in)
		}
	}
	if !ParseBoolString("maybe", true) {
		t.Fatalf("expected fallback for unrecognized value")
	}
	if ParseBoolString("", false) {
		t.Fatalf("expected fallback for empty value")
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("AUDIT_TEST_BOOL", "yes")
	if !ParseBoolEnv("AUDIT_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	if !ParseBoolEnv("AUDIT_TEST_BOOL_MISSING", true) {
		t.Fatalf("expected fallback true")
	}
}
