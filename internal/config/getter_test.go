package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestGetEnvStr(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("STARLOG_TEST_STR", "edgalaxydata.space")

	if got := GetEnvStr("STARLOG_TEST_STR", "fallback"); got != "edgalaxydata.space" {
		t.Errorf("GetEnvStr() = %q, want %q", got, "edgalaxydata.space")
	}

	if got := GetEnvStr("STARLOG_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnvStr() default = %q, want %q", got, "fallback")
	}
}

func TestGetEnvInt(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"valid integer", "8080", 1, 8080},
		{"negative integer", "-4", 1, -4},
		{"invalid integer", "eight", 9, 9},
		{"empty value", "", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("STARLOG_TEST_INT", tt.value)
			}

			if got := GetEnvInt("STARLOG_TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("STARLOG_TEST_INT64", "10477373803")

	if got := GetEnvInt64("STARLOG_TEST_INT64", 1); got != 10477373803 {
		t.Errorf("GetEnvInt64() = %d, want %d", got, int64(10477373803))
	}

	if got := GetEnvInt64("STARLOG_TEST_INT64_UNSET", 1048576); got != 1048576 {
		t.Errorf("GetEnvInt64() default = %d, want %d", got, int64(1048576))
	}
}

func TestGetEnvBool(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true literal", "true", false, true},
		{"one", "1", false, true},
		{"yes uppercase", "YES", false, true},
		{"false literal", "false", true, false},
		{"zero", "0", true, false},
		{"no with spaces", "  no  ", true, false},
		{"garbage keeps default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STARLOG_TEST_BOOL", tt.value)

			if got := GetEnvBool("STARLOG_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("STARLOG_TEST_DURATION", "90s")

	if got := GetEnvDuration("STARLOG_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("GetEnvDuration() = %v, want %v", got, 90*time.Second)
	}

	t.Setenv("STARLOG_TEST_DURATION", "ninety")

	if got := GetEnvDuration("STARLOG_TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("GetEnvDuration() invalid = %v, want %v", got, time.Minute)
	}
}

func TestGetEnvLogLevel(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("STARLOG_TEST_LOG_LEVEL", tt.value)

			if got := GetEnvLogLevel("STARLOG_TEST_LOG_LEVEL", slog.LevelInfo); got != tt.want {
				t.Errorf("GetEnvLogLevel(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseCommaSeparatedList(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"single", "fsdjump", []string{"fsdjump"}},
		{"multiple with spaces", "fsdjump, scan ,docked", []string{"fsdjump", "scan", "docked"}},
		{"trailing comma", "market,", []string{"market"}},
		{"only commas", ",,,", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommaSeparatedList(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseCommaSeparatedList(%q) = %v, want %v", tt.input, got, tt.want)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseCommaSeparatedList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}
