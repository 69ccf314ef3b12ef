package remotezip

import (
	"errors"

	"github.com/tjbrennan/remotezip/internal/rangehttp"
)

// Sentinel errors, one per failure kind in the design. Compare with
// errors.Is, never by string.
var (
	// ErrRangeUnsupported is returned when the remote server answers a
	// byte-range request with 200 OK instead of 206 Partial Content. The
	// server handed back the whole file, which would defeat the point of
	// range-based browsing, so the operation fails rather than slicing
	// the (possibly huge) body in memory.
	ErrRangeUnsupported = rangehttp.ErrRangeUnsupported

	// ErrMissingContentLength is returned by the size probe when the
	// response carries no Content-Length header.
	ErrMissingContentLength = rangehttp.ErrMissingContentLength

	// ErrMalformedContentLength is returned by the size probe when
	// Content-Length is present but not a valid non-negative integer.
	ErrMalformedContentLength = rangehttp.ErrMalformedContentLength

	// ErrEOCDNotFound is returned when the backward scan for the end of
	// central directory record exceeds the maximum possible comment
	// length (64 KiB window) without finding a valid signature.
	ErrEOCDNotFound = errors.New("remotezip: end of central directory record not found")

	// ErrInvalidTrailer is returned when the EOCD (or ZIP64 EOCD) fields
	// fail the geometry invariants: offsets and sizes must describe a
	// central directory that fits inside the archive.
	ErrInvalidTrailer = errors.New("remotezip: end of central directory record is invalid")

	// ErrInvalidZip64Locator is returned when the ZIP64 end of central
	// directory locator's signature does not match or the response was
	// truncated.
	ErrInvalidZip64Locator = errors.New("remotezip: zip64 end of central directory locator is invalid")

	// ErrInvalidZip64EOCD is returned when the ZIP64 end of central
	// directory record's signature does not match or the response was
	// truncated.
	ErrInvalidZip64EOCD = errors.New("remotezip: zip64 end of central directory record is invalid")

	// ErrInvalidLocalHeader is returned when a member's local file header
	// signature does not match during extraction.
	ErrInvalidLocalHeader = errors.New("remotezip: local file header is invalid")

	// ErrBrowserClosed is returned by any Browser operation other than
	// Size and Close once the Browser has been closed.
	ErrBrowserClosed = errors.New("remotezip: browser is closed")

	// ErrDecompressionFailed is returned when a deflate stream cannot be
	// decoded.
	ErrDecompressionFailed = errors.New("remotezip: decompression failed")

	// ErrChecksum is returned by a member reader, when checksum
	// verification is enabled, when the decompressed bytes do not match
	// the CRC-32 recorded in the central directory.
	ErrChecksum = errors.New("remotezip: CRC-32 checksum mismatch")

	// ErrUnsupportedCompressionMethod is returned, wrapped with the
	// offending method number, for any compression method other than
	// stored (0) or deflate (8).
	ErrUnsupportedCompressionMethod = errors.New("remotezip: unsupported compression method")
)

// HTTPStatusError reports that a request to the remote archive failed with
// an unexpected, non-range-related HTTP status. Match it with errors.As.
type HTTPStatusError = rangehttp.StatusError

