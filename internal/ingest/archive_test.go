package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// smallArchiveBz2 is a bzip2-compressed archive of three lines: two JSON
// objects and one fragment that the scanner must drop.
//
//	{"a":1}
//	not json fragment
//	{"b":2}
const smallArchiveBz2 = "QlpoOTFBWSZTWQv+gjMAAA9ZgAAQUAAwEDOTnAogACImg0GgPKFMJpoDTEKDi3wUdLwC+eq9GunYMWZAfi7kinChIBf9BGY="

func decodeFixture(t *testing.T, b64 string) []byte {
	t.Helper()

	blob, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("fixture decode failed: %v", err)
	}

	return blob
}

// ==============================================================================
// Unit Tests: Line Splitting
// ==============================================================================

func scanAll(t *testing.T, stream string) []string {
	t.Helper()

	scanner := newArchiveScannerFrom(strings.NewReader(stream), io.NopCloser(nil))

	var lines []string
	for scanner.Next() {
		lines = append(lines, string(scanner.Line()))
	}

	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	return lines
}

func TestArchiveScanner_YieldsObjectLines(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	lines := scanAll(t, "{\"a\":1}\n{\"b\":2}\n")

	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Errorf("lines = %v", lines)
	}
}

func TestArchiveScanner_DropsFragments(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	stream := "{\"a\":1}\n" +
		"tail of a split line}\n" +
		"\n" +
		"   {\"indented\":true}\n" +
		"{\"b\":2}\n"

	lines := scanAll(t, stream)

	// Fragments, blank lines, and indented lines are dropped silently;
	// only lines that open a JSON object count.
	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Errorf("lines = %v", lines)
	}
}

func TestArchiveScanner_FinalLineWithoutNewline(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	lines := scanAll(t, "{\"a\":1}\n{\"b\":2}")

	if len(lines) != 2 || lines[1] != `{"b":2}` {
		t.Errorf("lines = %v", lines)
	}
}

func TestArchiveScanner_EmptyStream(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if lines := scanAll(t, ""); len(lines) != 0 {
		t.Errorf("lines = %v, want none", lines)
	}
}

// ==============================================================================
// Unit Tests: Archive Client
// ==============================================================================

func TestArchiveClientURL(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	client := NewArchiveClient("https://edgalaxydata.space/EDDN/")
	dataset, _ := DatasetByName("FSDJump")
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	want := "https://edgalaxydata.space/EDDN/2026-01/Journal.FSDJump-2026-01-15.jsonl.bz2"
	if got := client.URL(dataset, day); got != want {
		t.Errorf("URL() = %s, want %s", got, want)
	}
}

func TestArchiveClientOpen(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	blob := decodeFixture(t, smallArchiveBz2)

	var requestedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path

		_, _ = w.Write(blob)
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, WithHTTPClient(server.Client()))
	dataset, _ := DatasetByName("FSDJump")
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	scanner, err := client.Open(t.Context(), dataset, day)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer scanner.Close()

	if requestedPath != "/2026-01/Journal.FSDJump-2026-01-15.jsonl.bz2" {
		t.Errorf("requested path = %s", requestedPath)
	}

	var lines []string
	for scanner.Next() {
		lines = append(lines, string(scanner.Line()))
	}

	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	// The fragment line inside the fixture is dropped.
	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Errorf("lines = %v", lines)
	}
}

func TestArchiveClientOpen_NotFound(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, WithHTTPClient(server.Client()))
	dataset, _ := DatasetByName("FSDJump")
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := client.Open(t.Context(), dataset, day)
	if !errors.Is(err, ErrArchiveFetch) {
		t.Errorf("Open() error = %v, want ErrArchiveFetch", err)
	}
}

func TestArchiveClientOpen_ContextCanceled(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	blob := decodeFixture(t, smallArchiveBz2)

	// The server sends headers and a sliver of the body, then holds the
	// stream open until the client goes away.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob[:10])
		w.(http.Flusher).Flush()

		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewArchiveClient(server.URL, WithHTTPClient(server.Client()))
	dataset, _ := DatasetByName("FSDJump")
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(t.Context())

	scanner, err := client.Open(ctx, dataset, day)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer scanner.Close()

	cancel()

	for scanner.Next() {
	}

	if err := scanner.Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", err)
	}
}

func TestArchiveClientOpen_ServerUnreachable(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// A closed server makes the request fail outright.
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := NewArchiveClient(server.URL)
	dataset, _ := DatasetByName("FSDJump")
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := client.Open(t.Context(), dataset, day)
	if !errors.Is(err, ErrArchiveFetch) {
		t.Errorf("Open() error = %v, want ErrArchiveFetch", err)
	}
}
