package http

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream responses are a sequence of chunks:
// - 1 byte: chunk kind
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
const (
	chunkItem  byte = 1
	chunkEnd   byte = 2
	chunkError byte = 3
)

func writeChunk(w io.Writer, kind byte, data []byte) error {
	header := make([]byte, 5)
	header[0] = kind
	binary.BigEndian.PutUint32(header[1:5], uint32(len(data)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func readChunk(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	kind := header[0]
	if kind < chunkItem || kind > chunkError {
		return 0, nil, fmt.Errorf("invalid stream chunk kind %d", kind)
	}

	data := make([]byte, binary.BigEndian.Uint32(header[1:5]))
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return kind, data, nil
}
