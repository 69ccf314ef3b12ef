package remotezip

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tjbrennan/remotezip/internal/rangehttp"
)

const (
	eocdSignature = 0x06054b50
	eocdMinSize   = 22

	zip64LocatorSignature = 0x07064b50
	zip64LocatorSize      = 20

	zip64EOCDSignature = 0x06064b50
	zip64EOCDSize      = 56

	eocdInitialWindow = 1024
	eocdMaxWindow     = 65536

	sentinel16 = 0xffff
	sentinel32 = 0xffffffff
)

// trailer is the parsed, ZIP64-resolved pair of facts the Central Directory
// parser needs: where the directory starts, how big it is (§3
// EndOfCentralDirectory).
type trailer struct {
	centralDirectoryOffset int64
	centralDirectorySize   int64
	totalEntries           uint64
}

// locateTrailer implements §4.3: a backward scan over a geometrically
// growing suffix window to find the EOCD signature, then the ZIP64 locator
// chain when sentinel values are present.
func locateTrailer(ctx context.Context, f *rangehttp.Fetcher, archiveSize int64) (trailer, error) {
	for window := int64(eocdInitialWindow); ; window *= 2 {
		w := min(window, archiveSize)
		if w < eocdMinSize {
			return trailer{}, ErrEOCDNotFound
		}

		start := archiveSize - w
		buf, err := f.Fetch(ctx, start, archiveSize-1)
		if err != nil {
			return trailer{}, err
		}

		if found := scanForEOCD(buf); found >= 0 {
			eocdOffset := start + int64(found)
			return resolveEOCD(ctx, f, buf[found:], eocdOffset, archiveSize)
		}

		if w == archiveSize || window > eocdMaxWindow {
			break
		}
	}
	return trailer{}, ErrEOCDNotFound
}

// scanForEOCD scans buf backwards looking for a structurally consistent
// EOCD record: a signature match whose comment-length field does not
// claim a comment that would run past the end of buf. buf always ends at
// the archive's true last byte, so this bound also rules out a signature
// sitting too close to the end to hold a full 22-byte record. Scanning
// backward and accepting the first consistent match selects the rightmost
// consistent candidate: a signature-looking byte pattern inside the
// trailing comment is skipped when its comment-length field overruns buf,
// mirroring the bound check in archive/zip's findSignatureInBlock.
// -1 means no consistent candidate exists in buf.
func scanForEOCD(buf []byte) int {
	for i := len(buf) - 4; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) != eocdSignature {
			continue
		}
		if len(buf)-i < eocdMinSize {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20:]))
		if i+eocdMinSize+commentLen > len(buf) {
			continue
		}
		return i
	}
	return -1
}

// resolveEOCD parses the 22-byte EOCD record found at eocdOffset and
// follows the ZIP64 chain when the sentinel values in §4.3 are present.
func resolveEOCD(ctx context.Context, f *rangehttp.Fetcher, eocd []byte, eocdOffset, archiveSize int64) (trailer, error) {
	if int64(len(eocd)) < eocdMinSize {
		return trailer{}, ErrInvalidTrailer
	}

	totalEntries := uint64(binary.LittleEndian.Uint16(eocd[10:]))
	centralDirSize := int64(binary.LittleEndian.Uint32(eocd[12:]))
	centralDirOffset := int64(binary.LittleEndian.Uint32(eocd[16:]))

	isZip64 := centralDirSize == sentinel32 || centralDirOffset == sentinel32 || totalEntries == sentinel16
	if isZip64 {
		t, err := resolveZip64(ctx, f, eocdOffset)
		if err != nil {
			return trailer{}, err
		}
		totalEntries, centralDirSize, centralDirOffset = t.totalEntries, t.centralDirectorySize, t.centralDirectoryOffset
	}

	if centralDirOffset < 0 || centralDirOffset >= archiveSize ||
		centralDirSize < 0 || centralDirSize > archiveSize ||
		centralDirOffset+centralDirSize > archiveSize {
		return trailer{}, ErrInvalidTrailer
	}

	return trailer{
		centralDirectoryOffset: centralDirOffset,
		centralDirectorySize:   centralDirSize,
		totalEntries:           totalEntries,
	}, nil
}

// resolveZip64 follows the 20-byte locator immediately preceding the EOCD
// to the 56-byte ZIP64 EOCD record (§4.3 step 1-2).
func resolveZip64(ctx context.Context, f *rangehttp.Fetcher, eocdOffset int64) (trailer, error) {
	locatorOffset := eocdOffset - zip64LocatorSize
	if locatorOffset < 0 {
		return trailer{}, fmt.Errorf("%w: would start at negative offset %d", ErrInvalidZip64Locator, locatorOffset)
	}

	locator, err := f.Fetch(ctx, locatorOffset, locatorOffset+zip64LocatorSize-1)
	if err != nil {
		return trailer{}, err
	}
	if int64(len(locator)) < zip64LocatorSize || binary.LittleEndian.Uint32(locator) != zip64LocatorSignature {
		return trailer{}, fmt.Errorf("%w: at offset %d", ErrInvalidZip64Locator, locatorOffset)
	}
	zip64EOCDOffset := int64(binary.LittleEndian.Uint64(locator[8:]))

	rec, err := f.Fetch(ctx, zip64EOCDOffset, zip64EOCDOffset+zip64EOCDSize-1)
	if err != nil {
		return trailer{}, err
	}
	if int64(len(rec)) < zip64EOCDSize || binary.LittleEndian.Uint32(rec) != zip64EOCDSignature {
		return trailer{}, fmt.Errorf("%w: at offset %d", ErrInvalidZip64EOCD, zip64EOCDOffset)
	}

	// Layout: signature(4) sizeOfEOCD64(8) versionMadeBy(2) versionNeeded(2)
	// diskNumber(4) diskWithCD(4) = 24 bytes skipped, then the three
	// 8-byte fields this record actually needs.
	totalEntries := binary.LittleEndian.Uint64(rec[24:])
	// the following 8 bytes (entries on this disk, for spanned archives)
	// are not needed since spanning is out of scope.
	centralDirSize := int64(binary.LittleEndian.Uint64(rec[40:]))
	centralDirOffset := int64(binary.LittleEndian.Uint64(rec[48:]))

	return trailer{
		centralDirectoryOffset: centralDirOffset,
		centralDirectorySize:   centralDirSize,
		totalEntries:           totalEntries,
	}, nil
}
