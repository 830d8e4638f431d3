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

// Writer builds a GRF archive. Entries are compressed and written as they
// are added; the file table and header are written by Close.
type Writer struct {
	w       io.WriteSeeker
	closer  io.Closer
	entries []Entry
	offset  uint32
	closed  bool
}

// Create creates a GRF file at path.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	w, err := NewWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	w.closer = file
	return w, nil
}

// NewWriter starts a GRF archive on ws.
func NewWriter(ws io.WriteSeeker) (*Writer, error) {
	// Header placeholder, patched on Close.
	if _, err := ws.Write(make([]byte, headerSize)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &Writer{w: ws}, nil
}

// Add compresses data and appends it under name. Names use '/' or '\'
// separators; they are stored with backslashes in EUC-KR like client GRFs.
func (w *Writer) Add(name string, data []byte) error {
	if w.closed {
		return errors.New("grf writer is closed")
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}

	compressedSize := uint32(compressed.Len())
	alignedSize := compressedSize
	if alignedSize%8 != 0 {
		alignedSize += 8 - alignedSize%8
	}
	compressed.Write(make([]byte, alignedSize-compressedSize))

	if _, err := w.w.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	w.entries = append(w.entries, Entry{
		Name:             strings.ReplaceAll(name, "/", "\\"),
		CompressedSize:   compressedSize,
		AlignedSize:      alignedSize,
		UncompressedSize: uint32(len(data)),
		Flags:            FlagFile,
		Offset:           w.offset,
	})
	w.offset += alignedSize
	return nil
}

// Close writes the file table and header.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) finish() error {
	var table bytes.Buffer
	for _, e := range w.entries {
		table.Write(encoding.UTF8ToEUCKR(e.Name))
		table.WriteByte(0)
		binary.Write(&table, binary.LittleEndian, e.CompressedSize)
		binary.Write(&table, binary.LittleEndian, e.AlignedSize)
		binary.Write(&table, binary.LittleEndian, e.UncompressedSize)
		table.WriteByte(e.Flags)
		binary.Write(&table, binary.LittleEndian, e.Offset)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(table.Bytes()); err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}

	sizes := make([]byte, 8)
	binary.LittleEndian.PutUint32(sizes, uint32(compressed.Len()))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := w.w.Write(sizes); err != nil {
		return fmt.Errorf("writing file table: %w", err)
	}
	if _, err := w.w.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing file table: %w", err)
	}

	header := Header{
		TableOffset: w.offset,
		Seed:        0,
		// Stored count is biased by seed + 7.
		FileCount: uint32(len(w.entries)) + 7,
		Version:   version200,
	}
	copy(header.Magic[:], grfMagic)

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to header: %w", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}
