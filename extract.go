package remotezip

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/tjbrennan/remotezip/internal/rangehttp"
)

const (
	localHeaderSignature = 0x04034b50
	localHeaderLen       = 30
)

// extractMember implements §4.6: re-read the Local File Header, reconcile
// declared sizes, fetch the compressed payload in one range request, and
// return a lazily-decompressing reader. A nil, nil result means the entry
// is a directory and has no payload to extract.
func extractMember(ctx context.Context, f *rangehttp.Fetcher, e Entry, verifyChecksum bool) (io.Reader, error) {
	if e.IsDirectory {
		return nil, nil
	}

	header, err := f.Fetch(ctx, e.LocalHeaderOffset, e.LocalHeaderOffset+localHeaderLen-1)
	if err != nil {
		return nil, err
	}
	if int64(len(header)) < localHeaderLen || binary.LittleEndian.Uint32(header) != localHeaderSignature {
		return nil, ErrInvalidLocalHeader
	}

	localCompressedSize := int64(binary.LittleEndian.Uint32(header[18:]))
	localUncompressedSize := int64(binary.LittleEndian.Uint32(header[22:]))
	localFileNameLength := int64(binary.LittleEndian.Uint16(header[26:]))
	localExtraFieldLength := int64(binary.LittleEndian.Uint16(header[28:]))

	// Reconcile sizes (§4.6 Step 2): a ZIP64 sentinel, or either size
	// recorded as zero (the streaming-format case), means the Local Header
	// isn't authoritative and the Central Directory's compressedSize is
	// used for the payload length instead.
	compressedSize := localCompressedSize
	if localCompressedSize == sentinel32 || localUncompressedSize == sentinel32 ||
		localCompressedSize == 0 || localUncompressedSize == 0 {
		compressedSize = e.CompressedSize
	}

	payloadStart := e.LocalHeaderOffset + localHeaderLen + localFileNameLength + localExtraFieldLength

	var payload []byte
	if compressedSize > 0 {
		var err error
		payload, err = f.Fetch(ctx, payloadStart, payloadStart+compressedSize-1)
		if err != nil {
			return nil, err
		}
	}

	var r io.Reader
	switch e.CompressionMethod {
	case MethodStored:
		r = bytes.NewReader(payload)
	case MethodDeflate:
		r = &deflateErrorReader{r: flate.NewReader(bytes.NewReader(payload))}
	default:
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedCompressionMethod, e.CompressionMethod)
	}

	if verifyChecksum {
		r = newChecksumReader(r, e.UncompressedSize, e.CRC32)
	}
	return r, nil
}

// deflateErrorReader translates any non-EOF error from the underlying
// flate.Reader into ErrDecompressionFailed, so a caller distinguishing
// failure kinds with errors.Is never needs to know compress/flate's own
// error values.
type deflateErrorReader struct {
	r io.ReadCloser
}

func (d *deflateErrorReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = ErrDecompressionFailed
	}
	return n, err
}

// checksumReader wraps a reader and verifies its CRC-32 against the value
// recorded in the Central Directory once the declared number of bytes has
// been read.
type checksumReader struct {
	r      io.Reader
	remain int64
	want   uint32
	hash   hash.Hash32
}

func newChecksumReader(r io.Reader, size int64, want uint32) io.Reader {
	return &checksumReader{r: r, remain: size, want: want, hash: crc32.NewIEEE()}
}

func (c *checksumReader) Read(p []byte) (int, error) {
	if c.hash == nil {
		return 0, ErrChecksum
	}
	n, err := c.r.Read(p)
	c.hash.Write(p[:n])
	c.remain -= int64(n)
	if c.remain <= 0 && c.hash.Sum32() != c.want {
		c.hash = nil
		err = ErrChecksum
	}
	return n, err
}
