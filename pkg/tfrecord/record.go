// Package tfrecord writes and reads TFRecord files and encodes tf.Example
// messages, the input format of the TensorFlow object detection API.
//
// A record is framed as:
//
//	uint64 length (little endian)
//	uint32 masked crc32c of length
//	byte   data[length]
//	uint32 masked crc32c of data
package tfrecord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// ErrCorrupt reports a record whose checksum does not match
var ErrCorrupt = errors.New("tfrecord: corrupt record")

// MaxRecordSize bounds the length a Reader accepts from a record header
const MaxRecordSize = 256 << 20

const maskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// MaskedCRC returns the masked crc32c checksum TFRecord uses
func MaskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Writer appends framed records to an io.Writer
type Writer struct {
	w io.Writer
}

// NewWriter creates a record writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames and writes one record
func (w *Writer) Write(record []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(record)))
	binary.LittleEndian.PutUint32(header[8:], MaskedCRC(header[:8]))

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], MaskedCRC(record))

	for _, chunk := range [][]byte{header[:], record, footer[:]} {
		if _, err := w.w.Write(chunk); err != nil {
			return fmt.Errorf("write tfrecord: %w", err)
		}
	}
	return nil
}

// Reader reads framed records and verifies their checksums
type Reader struct {
	r io.Reader
}

// NewReader creates a record reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record, or io.EOF at a clean end of input
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read tfrecord header: %w", err)
	}
	if MaskedCRC(header[:8]) != binary.LittleEndian.Uint32(header[8:]) {
		return nil, fmt.Errorf("length checksum mismatch: %w", ErrCorrupt)
	}

	n := binary.LittleEndian.Uint64(header[:8])
	if n > MaxRecordSize {
		return nil, fmt.Errorf("record length %d exceeds %d bytes: %w", n, MaxRecordSize, ErrCorrupt)
	}
	data := make([]byte, n+4)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("read tfrecord data: %w", err)
	}
	record, footer := data[:n], data[n:]
	if MaskedCRC(record) != binary.LittleEndian.Uint32(footer) {
		return nil, fmt.Errorf("data checksum mismatch: %w", ErrCorrupt)
	}
	return record, nil
}
