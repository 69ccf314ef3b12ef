// Package remotezip lists and extracts individual members from a ZIP
// archive hosted on a remote HTTP server, without ever downloading the
// whole archive. It parses only the archive's trailer structures (the End
// of Central Directory record and the Central Directory) via HTTP
// byte-range requests, then services each member extraction with two more
// range requests (the member's local file header, then its payload)
// followed by DEFLATE decompression.
//
// Writing ZIP archives, encrypted entries, multi-disk spanning, and
// compression methods other than stored and deflate are out of scope.
package remotezip

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/tjbrennan/remotezip/internal/rangehttp"
)

// Builder is a plain configuration record for a Browser (§4.7, §9
// "Builder → plain configuration record"). Its methods return the
// receiver so calls can be chained; NewBuilder supplies the defaults.
type Builder struct {
	url            string
	username       string
	password       string
	client         rangehttp.Doer
	verifyChecksum bool
	logger         *slog.Logger
}

// NewBuilder returns a Builder for the archive at archiveURL, using
// http.DefaultClient until WithHTTPClient overrides it.
func NewBuilder(archiveURL string) *Builder {
	return &Builder{url: archiveURL, client: http.DefaultClient}
}

// WithBasicAuth configures the Authorization header per §6; both username
// and password must be non-empty to take effect.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.username, b.password = username, password
	return b
}

// WithHTTPClient replaces the default HTTP collaborator. client must
// satisfy rangehttp.Doer (*http.Client does, and is the default).
func (b *Builder) WithHTTPClient(client rangehttp.Doer) *Builder {
	if client != nil {
		b.client = client
	}
	return b
}

// WithChecksumVerification turns on CRC-32 verification of extracted
// members (§9 open question: off by default, since the design exposes the
// checksum but does not enforce it).
func (b *Builder) WithChecksumVerification() *Builder {
	b.verifyChecksum = true
	return b
}

// WithLogger replaces the slog.Logger the Browser uses for its
// informational events (duplicate names, failed extractions). The default
// is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build runs the initialization pipeline of §2 — SizeProbe, TrailerLocator,
// CentralDirectoryParser, Index — and returns a ready Browser.
func (b *Builder) Build(ctx context.Context) (*Browser, error) {
	log := b.logger
	if log == nil {
		log = slog.Default()
	}

	authHeader := rangehttp.EncodeBasicAuth(b.username, b.password)
	fetcher := rangehttp.New(b.url, b.client, authHeader)

	size, err := fetcher.ProbeSize(ctx)
	if err != nil {
		return nil, err
	}

	t, err := locateTrailer(ctx, fetcher, size)
	if err != nil {
		return nil, err
	}

	var dir []byte
	if t.centralDirectorySize > 0 {
		dir, err = fetcher.Fetch(ctx, t.centralDirectoryOffset, t.centralDirectoryOffset+t.centralDirectorySize-1)
		if err != nil {
			return nil, err
		}
	}

	entries, err := parseCentralDirectory(dir, size)
	if err != nil {
		return nil, err
	}

	fingerprint := fingerprintOf(b.url, size)
	return &Browser{
		fetcher:        fetcher,
		archiveSize:    size,
		index:          newIndex(entries, log.With("archive", fingerprint)),
		verifyChecksum: b.verifyChecksum,
		log:            log,
		fingerprint:    fingerprint,
	}, nil
}

// Browser is a ready, queryable view over a remote ZIP archive (§3, §4.7).
// Entries and the Index are built once during Build and are immutable
// afterward; a Browser is safe for concurrent use by multiple goroutines.
type Browser struct {
	fetcher        *rangehttp.Fetcher
	archiveSize    int64
	index          *index
	verifyChecksum bool
	log            *slog.Logger
	fingerprint    uint64

	closed atomic.Bool
}

// Size returns the archive's total length in bytes. It never fails and
// remains readable after Close, since it is a plain value computed during
// Build (§4.7, §7).
func (br *Browser) Size() int64 {
	return br.archiveSize
}

// List returns the ordered sequence of member names, completing
// immediately from the pre-built Index (§6).
func (br *Browser) List(ctx context.Context) ([]string, error) {
	if br.closed.Load() {
		return nil, ErrBrowserClosed
	}
	return br.index.list(), nil
}

// Glob returns the member names matching a doublestar-style glob pattern.
func (br *Browser) Glob(ctx context.Context, pattern string) ([]string, error) {
	if br.closed.Load() {
		return nil, ErrBrowserClosed
	}
	return br.index.glob(pattern)
}

// Get extracts a member by name (§4.6, §4.7). A nil reader and nil error
// together mean "not found": either no entry is registered under name, or
// the entry is a directory marker. Per §5, a Get that observes closed ==
// true at entry rejects immediately; one already in flight when Close is
// called is allowed to finish.
func (br *Browser) Get(ctx context.Context, name string) (io.Reader, error) {
	if br.closed.Load() {
		return nil, ErrBrowserClosed
	}

	e, ok := br.index.find(name)
	if !ok {
		return nil, nil
	}

	r, err := extractMember(ctx, br.fetcher, e, br.verifyChecksum)
	if err != nil {
		br.log.Error("getMemberFailed", "archive", br.fingerprint, "name", name, "err", err)
		return nil, err
	}
	return r, nil
}

// Close latches the Browser into the closed state. It is idempotent and
// releases no resources of its own: the only shared resource is the HTTP
// collaborator, whose lifecycle the caller owns (§5 "Resource release").
func (br *Browser) Close() error {
	br.closed.Store(true)
	return nil
}

// fingerprintOf derives a short, non-cryptographic correlation token from
// the archive URL and size so a caller running many Browsers can tell
// their log lines apart. It never touches member payload bytes.
func fingerprintOf(url string, size int64) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(url)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(size))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
