package remotezip

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"testing"

	"github.com/tjbrennan/remotezip/internal/rangehttp"
)

// fakeArchive assembles a minimal archive: an arbitrary "central directory"
// blob (its contents are irrelevant to trailer location) followed by a
// hand-built EOCD record and an optional trailing comment. The ZIP64 test
// builds its locator/EOCD64 chain by hand instead.
type fakeArchive struct {
	centralDir []byte
}

func (a fakeArchive) eocd(comment []byte) []byte {
	rec := make([]byte, eocdMinSize)
	binary.LittleEndian.PutUint32(rec, eocdSignature)
	binary.LittleEndian.PutUint16(rec[10:], uint16(1))
	binary.LittleEndian.PutUint32(rec[12:], uint32(len(a.centralDir)))
	binary.LittleEndian.PutUint32(rec[16:], 0) // offset: central dir starts at 0
	binary.LittleEndian.PutUint16(rec[20:], uint16(len(comment)))
	return append(rec, comment...)
}

func fetcherFor(t *testing.T, data []byte) (*rangehttp.Fetcher, int64) {
	t.Helper()
	url := rangeServer(t, data)
	return rangehttp.New(url, http.DefaultClient, ""), int64(len(data))
}

func TestLocateTrailerBasic(t *testing.T) {
	a := fakeArchive{centralDir: bytes.Repeat([]byte{0xAA}, 50)}
	data := append(append([]byte{}, a.centralDir...), a.eocd(nil)...)

	f, size := fetcherFor(t, data)
	tr, err := locateTrailer(context.Background(), f, size)
	if err != nil {
		t.Fatalf("locateTrailer: %v", err)
	}
	if tr.centralDirectoryOffset != 0 || tr.centralDirectorySize != int64(len(a.centralDir)) {
		t.Fatalf("got %+v", tr)
	}
}

func TestLocateTrailerWithMaxComment(t *testing.T) {
	a := fakeArchive{centralDir: bytes.Repeat([]byte{0xAA}, 10)}
	comment := bytes.Repeat([]byte{'x'}, 65535)
	data := append(append([]byte{}, a.centralDir...), a.eocd(comment)...)

	f, size := fetcherFor(t, data)
	_, err := locateTrailer(context.Background(), f, size)
	if err != nil {
		t.Fatalf("locateTrailer with max comment: %v", err)
	}
}

func TestLocateTrailerSignatureCollisionInComment(t *testing.T) {
	a := fakeArchive{centralDir: bytes.Repeat([]byte{0xAA}, 10)}

	// Plant a byte pattern that looks like the EOCD signature inside the
	// comment, where the backward scan meets it before the real trailer.
	// That candidate's comment-length field, 20 bytes past its signature,
	// falls in the '-' padding: 0x2D2D read little-endian claims a comment
	// far longer than what remains in the buffer, so the consistency check
	// rejects this candidate and the scan keeps going to find the real EOCD.
	fakeSig := make([]byte, 4)
	binary.LittleEndian.PutUint32(fakeSig, eocdSignature)
	comment := append(append([]byte("noise-"), fakeSig...), []byte{0xff, 0xff}...)
	comment = append(comment, bytes.Repeat([]byte{'-'}, 40)...)

	data := append(append([]byte{}, a.centralDir...), a.eocd(comment)...)

	f, size := fetcherFor(t, data)
	tr, err := locateTrailer(context.Background(), f, size)
	if err != nil {
		t.Fatalf("locateTrailer: %v", err)
	}
	if tr.centralDirectoryOffset != 0 || tr.centralDirectorySize != int64(len(a.centralDir)) {
		t.Fatalf("picked the wrong EOCD: got %+v", tr)
	}
}

func TestLocateTrailerNotFound(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 100)
	f, size := fetcherFor(t, data)
	_, err := locateTrailer(context.Background(), f, size)
	if err == nil {
		t.Fatal("expected an error for an archive with no EOCD")
	}
}

func TestLocateTrailerZip64(t *testing.T) {
	centralDir := bytes.Repeat([]byte{0xBB}, 20)
	centralDirOffset := int64(0)
	centralDirSize := int64(len(centralDir))

	zip64EOCD := make([]byte, zip64EOCDSize)
	binary.LittleEndian.PutUint32(zip64EOCD, zip64EOCDSignature)
	binary.LittleEndian.PutUint64(zip64EOCD[24:], 1) // total entries
	binary.LittleEndian.PutUint64(zip64EOCD[40:], uint64(centralDirSize))
	binary.LittleEndian.PutUint64(zip64EOCD[48:], uint64(centralDirOffset))

	zip64EOCDOffset := centralDirSize

	locator := make([]byte, zip64LocatorSize)
	binary.LittleEndian.PutUint32(locator, zip64LocatorSignature)
	binary.LittleEndian.PutUint64(locator[8:], uint64(zip64EOCDOffset))

	eocd := make([]byte, eocdMinSize)
	binary.LittleEndian.PutUint32(eocd, eocdSignature)
	binary.LittleEndian.PutUint16(eocd[10:], sentinel16)
	binary.LittleEndian.PutUint32(eocd[12:], sentinel32)
	binary.LittleEndian.PutUint32(eocd[16:], sentinel32)

	var data []byte
	data = append(data, centralDir...)
	data = append(data, zip64EOCD...)
	data = append(data, locator...)
	data = append(data, eocd...)

	f, size := fetcherFor(t, data)
	tr, err := locateTrailer(context.Background(), f, size)
	if err != nil {
		t.Fatalf("locateTrailer: %v", err)
	}
	if tr.centralDirectoryOffset != centralDirOffset || tr.centralDirectorySize != centralDirSize || tr.totalEntries != 1 {
		t.Fatalf("got %+v", tr)
	}
}
