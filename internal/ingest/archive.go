package ingest

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Scanner buffer sizing. Commodity snapshots for large markets produce
// lines in the hundreds of kilobytes, so the ceiling is generous.
const (
	initialLineBuffer = 64 * 1024
	maxLineBytes      = 10 * 1024 * 1024
)

// ErrArchiveFetch is returned when a daily archive cannot be fetched.
// A fetch error aborts the whole dataset run; there is no per-line
// recovery from a missing archive.
var ErrArchiveFetch = errors.New("archive fetch failed")

// ArchiveClient fetches daily journal archives over HTTP.
type ArchiveClient struct {
	baseURL string
	client  *http.Client
}

// ArchiveOption configures optional ArchiveClient behavior.
type ArchiveOption func(*ArchiveClient)

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) ArchiveOption {
	return func(c *ArchiveClient) {
		c.client = client
	}
}

// NewArchiveClient creates a client rooted at baseURL, for example
// "https://edgalaxydata.space/EDDN". The default HTTP client carries
// no overall timeout since archives run to hundreds of megabytes;
// cancellation comes from the request context.
func NewArchiveClient(baseURL string, opts ...ArchiveOption) *ArchiveClient {
	client := &ArchiveClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// URL returns the archive URL for a dataset and day. Archives are laid
// out in month directories: <base>/<YYYY-MM>/<FileBase>-<YYYY-MM-DD>.jsonl.bz2.
func (c *ArchiveClient) URL(dataset Dataset, day time.Time) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, day.Format("2006-01"), dataset.ArchiveFile(day))
}

// Open fetches the daily archive for a dataset and returns a scanner
// over its decompressed lines. Any non-2xx response is an error; a
// missing archive means the day is not published yet and the run
// cannot proceed.
func (c *ArchiveClient) Open(ctx context.Context, dataset Dataset, day time.Time) (*ArchiveScanner, error) {
	url := c.URL(dataset, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveFetch, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("%w: %s returned status %d", ErrArchiveFetch, url, resp.StatusCode)
	}

	return newArchiveScanner(resp.Body), nil
}

// ArchiveScanner iterates the event lines of a bzip2-compressed
// archive stream. Only lines that open a JSON object are yielded;
// fragments and blank lines are dropped silently. The final line is
// yielded even without a trailing newline.
type ArchiveScanner struct {
	body    io.Closer
	scanner *bufio.Scanner
	line    []byte
}

func newArchiveScanner(body io.ReadCloser) *ArchiveScanner {
	return newArchiveScannerFrom(bzip2.NewReader(body), body)
}

// newArchiveScannerFrom splits an already-decompressed stream, so the
// line handling is testable without bzip2 fixtures.
func newArchiveScannerFrom(stream io.Reader, closer io.Closer) *ArchiveScanner {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBytes)

	return &ArchiveScanner{body: closer, scanner: scanner}
}

var linePrefix = []byte(`{"`)

// Next advances to the next event line. It returns false at the end
// of the stream or on a read error; check Err afterwards.
func (s *ArchiveScanner) Next() bool {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if bytes.HasPrefix(line, linePrefix) {
			s.line = line

			return true
		}
	}

	return false
}

// Line returns the current event line. The slice is only valid until
// the next call to Next.
func (s *ArchiveScanner) Line() []byte {
	return s.line
}

// Err returns the first error encountered while reading the stream.
func (s *ArchiveScanner) Err() error {
	return s.scanner.Err()
}

// Close releases the underlying response body.
func (s *ArchiveScanner) Close() error {
	return s.body.Close()
}
