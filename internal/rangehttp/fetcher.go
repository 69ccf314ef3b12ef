// Package rangehttp is the HTTP collaborator for remotezip: it knows how to
// ask a remote server for a byte range or its total size, and nothing else.
// It has no notion of ZIP, central directories, or entries.
package rangehttp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Doer is the HTTP collaborator contract (§6): anything that can perform an
// *http.Request and return an *http.Response. *http.Client satisfies this
// directly.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	// ErrRangeUnsupported is returned when the server answers a ranged
	// GET with 200 OK instead of 206 Partial Content.
	ErrRangeUnsupported = errors.New("rangehttp: server does not support byte-range requests")

	// ErrMissingContentLength is returned when a size probe's response
	// has no Content-Length header.
	ErrMissingContentLength = errors.New("rangehttp: response is missing Content-Length")

	// ErrMalformedContentLength is returned when Content-Length is
	// present but not a valid non-negative integer.
	ErrMalformedContentLength = errors.New("rangehttp: Content-Length is not a valid integer")
)

// StatusError reports an unexpected, non-range-related HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rangehttp: unexpected HTTP status %d", e.StatusCode)
}

// Fetcher issues byte-range and metadata-only requests against a single
// archive URL. It is stateless with respect to the archive's contents and
// safe for concurrent use; the only state it keeps is the singleflight
// group used to collapse duplicate in-flight range requests.
type Fetcher struct {
	url        string
	client     Doer
	authHeader string // "" when no credentials were configured

	group singleflight.Group
}

// New returns a Fetcher that issues requests for archiveURL using client.
// authHeader, if non-empty, is sent verbatim as the Authorization header on
// every request (see EncodeBasicAuth).
func New(archiveURL string, client Doer, authHeader string) *Fetcher {
	return &Fetcher{url: archiveURL, client: client, authHeader: authHeader}
}

// EncodeBasicAuth implements the auth encoding rule in §6: both username and
// password must be non-empty for a header to be produced.
func EncodeBasicAuth(username, password string) string {
	if username == "" || password == "" {
		return ""
	}
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token
}

// Fetch returns the inclusive byte range [start, end] of the archive. It
// requires 0 <= start <= end.
func (f *Fetcher) Fetch(ctx context.Context, start, end int64) ([]byte, error) {
	key := strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)

	v, err, _ := f.group.Do(key, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		if f.authHeader != "" {
			req.Header.Set("Authorization", f.authHeader)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusPartialContent:
			return io.ReadAll(resp.Body)
		case http.StatusOK:
			// The server ignored our Range header and is about to hand us
			// the entire archive. Bail out before reading the body: for a
			// large archive that read alone could exhaust memory, and it
			// would defeat the whole point of range-based browsing.
			return nil, ErrRangeUnsupported
		default:
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
	})
	if err != nil {
		return nil, err
	}

	body := v.([]byte)
	// Hand every caller its own copy: singleflight shares one result among
	// all callers that collapsed onto this fetch, and a member extractor
	// is free to mutate the slice it gets back (e.g. as a flate input
	// buffer) without corrupting a sibling's view of the same bytes.
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// ProbeSize issues a metadata-only request and returns the archive's total
// length from Content-Length.
func (f *Fetcher) ProbeSize(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.url, nil)
	if err != nil {
		return 0, err
	}
	if f.authHeader != "" {
		req.Header.Set("Authorization", f.authHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	raw := resp.Header.Get("Content-Length")
	if raw == "" {
		// Some Doer implementations (and the stdlib client, for HEAD
		// requests under certain transports) surface the length on the
		// response struct instead of the header map.
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return 0, ErrMissingContentLength
	}

	size, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || size < 0 {
		return 0, ErrMalformedContentLength
	}
	return size, nil
}
