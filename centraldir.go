package remotezip

import (
	"encoding/binary"
	"time"
)

const (
	centralDirSignature = 0x02014b50
	centralDirFixedLen  = 46
	zip64ExtraHeaderID  = 0x0001
)

// parseCentralDirectory implements §4.4: walk the Central Directory byte
// blob record by record, resolving ZIP64 extra fields as needed, and
// return the entries in traversal order.
func parseCentralDirectory(dir []byte, archiveSize int64) ([]Entry, error) {
	var entries []Entry

	for len(dir) >= centralDirFixedLen {
		if binary.LittleEndian.Uint32(dir) != centralDirSignature {
			// Entries after the last valid signature are ignored,
			// tolerating trailing padding (§4.4).
			break
		}

		compressionMethod := binary.LittleEndian.Uint16(dir[10:])
		modTime := binary.LittleEndian.Uint16(dir[12:])
		modDate := binary.LittleEndian.Uint16(dir[14:])
		crc32 := binary.LittleEndian.Uint32(dir[16:])
		compressedSize := int64(binary.LittleEndian.Uint32(dir[20:]))
		uncompressedSize := int64(binary.LittleEndian.Uint32(dir[24:]))
		fileNameLength := int(binary.LittleEndian.Uint16(dir[28:]))
		extraFieldLength := int(binary.LittleEndian.Uint16(dir[30:]))
		fileCommentLength := int(binary.LittleEndian.Uint16(dir[32:]))
		externalAttrs := binary.LittleEndian.Uint32(dir[38:])
		localHeaderOffset := int64(binary.LittleEndian.Uint32(dir[42:]))

		recordLen := centralDirFixedLen + fileNameLength + extraFieldLength + fileCommentLength
		if len(dir) < recordLen {
			break
		}

		name := string(dir[centralDirFixedLen : centralDirFixedLen+fileNameLength])
		extra := dir[centralDirFixedLen+fileNameLength : centralDirFixedLen+fileNameLength+extraFieldLength]
		dir = dir[recordLen:]

		if compressedSize == sentinel32 || uncompressedSize == sentinel32 || localHeaderOffset == sentinel32 {
			resolveZip64Extra(parseExtraFields(extra), &uncompressedSize, &compressedSize, &localHeaderOffset)
		}

		if localHeaderOffset < 0 || localHeaderOffset+30+int64(fileNameLength)+int64(extraFieldLength)+compressedSize > archiveSize {
			return nil, ErrInvalidTrailer
		}

		isDir := isDirectoryName(name) || isDirectoryAttrs(externalAttrs)

		entries = append(entries, Entry{
			Name:               name,
			LocalHeaderOffset:  localHeaderOffset,
			CompressedSize:     compressedSize,
			UncompressedSize:   uncompressedSize,
			CompressionMethod:  compressionMethod,
			CRC32:              crc32,
			IsDirectory:        isDir,
			FileNameLength:     fileNameLength,
			ExtraFieldLength:   extraFieldLength,
			ExternalAttributes: externalAttrs,
			ModTime:            msDosTimeToTime(modDate, modTime),
		})
	}

	return entries, nil
}

// parseExtraFields walks the TLV-encoded extra field blob (§4.4, GLOSSARY
// "Extra field") into a map keyed by header id. Unknown fields are skipped
// by their declared size; a field whose declared size runs past the end of
// the blob ends iteration early.
func parseExtraFields(extra []byte) map[int][]byte {
	fields := make(map[int][]byte)
	for len(extra) >= 4 {
		id := int(binary.LittleEndian.Uint16(extra))
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if len(extra) < 4+size {
			break
		}
		fields[id] = extra[4:][:size]
		extra = extra[4+size:]
	}
	return fields
}

// resolveZip64Extra substitutes the ZIP64 extra field's 8-byte values into
// the sentinel-valued Central Directory fields, in the order the field
// mandates: uncompressedSize, compressedSize, localHeaderOffset — each
// consumed only if the corresponding field held the 0xFFFFFFFF sentinel
// (§4.4 "ZIP64 extra-field resolution"). A missing or too-short 0x0001
// field leaves the sentinel values in place.
func resolveZip64Extra(fields map[int][]byte, uncompressedSize, compressedSize, localHeaderOffset *int64) {
	data, ok := fields[zip64ExtraHeaderID]
	if !ok {
		return
	}
	for _, slot := range []*int64{uncompressedSize, compressedSize, localHeaderOffset} {
		if *slot != sentinel32 || len(data) < 8 {
			continue
		}
		*slot = int64(binary.LittleEndian.Uint64(data))
		data = data[8:]
	}
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// Resolution is 2s.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}
