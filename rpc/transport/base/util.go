package base

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameHeaderSize is the size of the length prefix of a frame
const frameHeaderSize = 4

// maxFrameSize bounds the length of a single frame
const maxFrameSize = 16 << 20 // 16 MB

// writeFrame writes a frame to w with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(w io.Writer, data []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFrame reads a frame from r using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	contentLength := binary.BigEndian.Uint32(header[:])
	if contentLength > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", contentLength, maxFrameSize)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return nil, err
	}

	return buf[:contentLength], nil
}
