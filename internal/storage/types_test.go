package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestKeyValidateKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	hourAgo := time.Now().Add(-time.Hour)
	hourAhead := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		key      Key
		provided string
		want     bool
	}{
		{
			name:     "matching key on an active record",
			key:      Key{Key: "starlog_ak_match", Active: true},
			provided: "starlog_ak_match",
			want:     true,
		},
		{
			name:     "wrong key",
			key:      Key{Key: "starlog_ak_match", Active: true},
			provided: "starlog_ak_other",
			want:     false,
		},
		{
			name:     "empty provided key",
			key:      Key{Key: "starlog_ak_match", Active: true},
			provided: "",
			want:     false,
		},
		{
			name:     "inactive record rejects its own key",
			key:      Key{Key: "starlog_ak_match", Active: false},
			provided: "starlog_ak_match",
			want:     false,
		},
		{
			name:     "expired record rejects its own key",
			key:      Key{Key: "starlog_ak_match", Active: true, ExpiresAt: &hourAgo},
			provided: "starlog_ak_match",
			want:     false,
		},
		{
			name:     "future expiry still validates",
			key:      Key{Key: "starlog_ak_match", Active: true, ExpiresAt: &hourAhead},
			provided: "starlog_ak_match",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.ValidateKey(tt.provided); got != tt.want {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.provided, got, tt.want)
			}
		})
	}
}

func TestKeyHasPermission(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key := Key{
		UploaderID:  "eddn-relay",
		Permissions: []string{"journal:write", "health:read", "metrics:read"},
	}

	if !key.HasPermission("journal:write") {
		t.Error("HasPermission(journal:write) = false, want true")
	}

	if !key.HasPermission("metrics:read") {
		t.Error("HasPermission(metrics:read) = false, want true")
	}

	if key.HasPermission("admin:write") {
		t.Error("HasPermission(admin:write) = true, want false")
	}

	if key.HasPermission("") {
		t.Error("HasPermission(empty) = true, want false")
	}

	if (&Key{}).HasPermission("journal:write") {
		t.Error("HasPermission on a key without grants = true, want false")
	}
}

func TestSecureCompare(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "equal strings", a: "starlog_ak_0011", b: "starlog_ak_0011", want: true},
		{name: "same length, different content", a: "starlog_ak_0011", b: "starlog_ak_0012", want: false},
		{name: "different lengths", a: "starlog_ak_0011", b: "starlog_ak", want: false},
		{name: "both empty", a: "", b: "", want: true},
		{name: "one empty", a: "x", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecureCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	issued := "starlog_ak_1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

	masked := MaskKey(issued)
	if masked != "starlog_ak_1234"+strings.Repeat("*", 56)+"cdef" {
		t.Errorf("MaskKey(issued) = %q", masked)
	}

	if len(masked) != len(issued) {
		t.Errorf("MaskKey must preserve length: got %d, want %d", len(masked), len(issued))
	}

	// Off-format keys reveal nothing but their length.
	if got := MaskKey("dev-key-123"); got != strings.Repeat("*", 11) {
		t.Errorf("MaskKey(dev key) = %q", got)
	}

	if got := MaskKey(""); got != "" {
		t.Errorf("MaskKey(empty) = %q, want empty", got)
	}
}

func TestGenerateAndParseAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if _, err := GenerateAPIKey(""); !errors.Is(err, ErrUploaderIDEmpty) {
		t.Errorf("GenerateAPIKey(empty uploader) error = %v, want ErrUploaderIDEmpty", err)
	}

	key, err := GenerateAPIKey("eddn-relay")
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	if !strings.HasPrefix(key, "starlog_ak_") {
		t.Errorf("generated key %q missing issued prefix", key)
	}

	if len(key) != keyLength {
		t.Errorf("generated key length = %d, want %d", len(key), keyLength)
	}

	// A freshly minted key must survive the header round trip, with and
	// without the Bearer scheme.
	for _, header := range []string{key, "Bearer " + key} {
		parsed, err := ParseAPIKey(header)
		if err != nil {
			t.Errorf("ParseAPIKey(%q) error = %v", header, err)
		}

		if parsed != key {
			t.Errorf("ParseAPIKey(%q) = %q, want the bare key", header, parsed)
		}
	}

	// Consecutive keys must differ.
	second, err := GenerateAPIKey("eddn-relay")
	if err != nil {
		t.Fatalf("GenerateAPIKey() second call error = %v", err)
	}

	if second == key {
		t.Error("GenerateAPIKey() produced the same key twice")
	}
}

func TestParseAPIKeyRejections(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{
			name:    "empty header",
			header:  "",
			wantErr: ErrKeyStringEmpty,
		},
		{
			name:    "foreign prefix",
			header:  "sk-live-1234567890abcdef",
			wantErr: ErrInvalidKeyFormat,
		},
		{
			name:    "right prefix, truncated body",
			header:  "starlog_ak_1234",
			wantErr: ErrInvalidKeyLength,
		},
		{
			name:    "right prefix, overlong body",
			header:  "starlog_ak_" + strings.Repeat("f", 80),
			wantErr: ErrInvalidKeyLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAPIKey(tt.header); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseAPIKey(%q) error = %v, want %v", tt.header, err, tt.wantErr)
			}
		})
	}
}
