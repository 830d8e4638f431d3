// Package grf reads and writes GRF packed container archives (version 0x200).
package grf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/midgard-scene/pkg/encoding"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version200 = 0x200

	// Sanity bounds for the decompressed file table and a single entry.
	maxTableSize = 1 << 28
	maxEntrySize = 1 << 30
)

// Entry flags.
const (
	FlagFile       uint8 = 0x01
	FlagMixCrypt   uint8 = 0x02
	FlagHeaderDES  uint8 = 0x04
	flagEncryption       = FlagMixCrypt | FlagHeaderDES
)

// GRF errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrCorruptTable       = errors.New("corrupt GRF file table")
	ErrEncrypted          = errors.New("encrypted GRF entries are not supported")
	ErrNotFound           = errors.New("file not found in GRF")
	ErrEntrySize          = errors.New("GRF entry size out of bounds")
)

// Header contains GRF file header information.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry represents a file entry in the archive.
// Name is the stored name decoded to UTF-8, separators untouched.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Encrypted reports whether the entry uses any GRF encryption scheme.
func (e *Entry) Encrypted() bool {
	return e.Flags&flagEncryption != 0
}

// Archive represents an opened GRF archive.
// Reads go through ReaderAt, so an Archive is safe for concurrent reads.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	size    int64
	header  Header
	entries []Entry
	byName  map[string]int
}

// Open opens a GRF archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	archive, err := NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	archive.closer = file
	return archive, nil
}

// NewReader reads the header and file table of a GRF held by r.
func NewReader(r io.ReaderAt, size int64) (*Archive, error) {
	archive := &Archive{
		r:      r,
		size:   size,
		byName: make(map[string]int),
	}

	if err := archive.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := archive.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return archive, nil
}

// Close closes the underlying file, if the archive owns one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns a copy of the archive header.
func (a *Archive) Header() Header {
	return a.header
}

func (a *Archive) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := a.r.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("%w: short header", ErrInvalidMagic)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &a.header); err != nil {
		return err
	}

	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	sizes := make([]byte, 8)
	if _, err := a.r.ReadAt(sizes, tableOffset); err != nil {
		return fmt.Errorf("%w: table header at %d: %v", ErrCorruptTable, tableOffset, err)
	}
	compressedSize := binary.LittleEndian.Uint32(sizes)
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	if int64(compressedSize) > a.size-tableOffset-8 || uncompressedSize > maxTableSize {
		return fmt.Errorf("%w: table sizes %d/%d exceed archive", ErrCorruptTable, compressedSize, uncompressedSize)
	}

	fileCount := int64(a.header.FileCount) - int64(a.header.Seed) - 7
	if fileCount < 0 {
		return fmt.Errorf("%w: negative file count", ErrCorruptTable)
	}
	if fileCount == 0 {
		return nil
	}

	tableData, err := inflate(io.NewSectionReader(a.r, tableOffset+8, int64(compressedSize)), int(uncompressedSize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	offset := 0
	for i := int64(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(tableData[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d has no name terminator", ErrCorruptTable, i)
		}
		name := encoding.EUCKRToUTF8(tableData[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+17 > len(tableData) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}

		entry := Entry{
			Name:             name,
			CompressedSize:   binary.LittleEndian.Uint32(tableData[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(tableData[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(tableData[offset+8:]),
			Flags:            tableData[offset+12],
			Offset:           binary.LittleEndian.Uint32(tableData[offset+13:]),
		}
		offset += 17

		// Directory records carry no file flag.
		if entry.Flags&FlagFile == 0 {
			continue
		}
		a.byName[normalizePath(entry.Name)] = len(a.entries)
		a.entries = append(a.entries, entry)
	}

	return nil
}

// Entries returns the file entries in table order.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// List returns all file paths in the archive, normalized.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for i := range a.entries {
		result = append(result, normalizePath(a.entries[i].Name))
	}
	return result
}

// Lookup finds an entry by case-insensitive path.
func (a *Archive) Lookup(path string) (Entry, bool) {
	i, ok := a.byName[normalizePath(path)]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.byName[normalizePath(path)]
	return ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return a.ReadEntry(entry)
}

// ReadEntry decompresses the content of entry.
func (a *Archive) ReadEntry(entry Entry) ([]byte, error) {
	if entry.Encrypted() {
		return nil, fmt.Errorf("%s: %w", entry.Name, ErrEncrypted)
	}

	if entry.UncompressedSize > maxEntrySize {
		return nil, fmt.Errorf("%s: %w: %d bytes", entry.Name, ErrEntrySize, entry.UncompressedSize)
	}

	dataOffset := int64(entry.Offset) + headerSize
	if dataOffset+int64(entry.CompressedSize) > a.size {
		return nil, fmt.Errorf("%s: entry data past end of archive", entry.Name)
	}
	section := io.NewSectionReader(a.r, dataOffset, int64(entry.CompressedSize))

	if entry.CompressedSize == entry.UncompressedSize {
		data := make([]byte, entry.UncompressedSize)
		if _, err := io.ReadFull(section, data); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name, err)
		}
		return data, nil
	}

	data, err := inflate(section, int(entry.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}
	return data, nil
}

func inflate(r io.Reader, size int) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	// Grow with the stream rather than trusting the declared size.
	out, err := io.ReadAll(io.LimitReader(zr, int64(size)))
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, fmt.Errorf("inflated %d of %d bytes: %w", len(out), size, io.ErrUnexpectedEOF)
	}
	return out, nil
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
