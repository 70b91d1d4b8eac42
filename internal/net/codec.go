package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeaderSize is the length prefix in front of every TCP frame.
const FrameHeaderSize = 2

// MaxFrameData is the largest payload a frame can carry.
const MaxFrameData = 0xFFFF - FrameHeaderSize

// ReadFrame reads one frame from r.
// Wire format: [2 bytes LE: total length including header][data].
// Returns the data bytes (without the 2-byte length header).
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	dataLen := totalLen - FrameHeaderSize
	if dataLen <= 0 {
		return nil, fmt.Errorf("invalid frame length: %d", totalLen)
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame data (%d bytes): %w", dataLen, err)
	}
	return data, nil
}

// WriteFrame writes one frame to w in a single Write call.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 || len(data) > MaxFrameData {
		return fmt.Errorf("frame data size %d out of range", len(data))
	}
	buf := make([]byte, FrameHeaderSize+len(data))
	binary.LittleEndian.PutUint16(buf, uint16(len(buf)))
	copy(buf[FrameHeaderSize:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
