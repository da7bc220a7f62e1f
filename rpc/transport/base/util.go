package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// frameKind tells the receiver how to treat the payload of a frame
type frameKind uint8

const (
	// frameUnary carries a unary request or its response
	frameUnary frameKind = iota + 1
	// frameStreamOpen carries a request answered by a stream
	frameStreamOpen
	// frameStreamItem carries one message of a stream
	frameStreamItem
	// frameStreamEnd terminates a stream, a non empty payload is an error text
	frameStreamEnd
	// frameStreamCancel is sent by the client when it abandons a stream
	frameStreamCancel
)

const headerSize = 21

func (k frameKind) valid() bool {
	return k >= frameUnary && k <= frameStreamCancel
}

// writeFrame writes a frame to the connection with the format:
// - 1 byte: frame kind
// - 8 bytes: shardId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, kind frameKind, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, headerSize)
	header[0] = byte(kind)
	binary.BigEndian.PutUint64(header[1:9], shardID)
	binary.BigEndian.PutUint64(header[9:17], requestID)
	binary.BigEndian.PutUint32(header[17:21], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// frame is a decoded frame, data may point into the buffer passed to readFrame
type frame struct {
	kind      frameKind
	shardID   uint64
	requestID uint64
	data      []byte
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (frame, error) {
	if len(buf) < headerSize {
		buf = make([]byte, headerSize)
	}

	if _, err := io.ReadFull(conn, buf[:headerSize]); err != nil {
		return frame{}, err
	}

	f := frame{
		kind:      frameKind(buf[0]),
		shardID:   binary.BigEndian.Uint64(buf[1:9]),
		requestID: binary.BigEndian.Uint64(buf[9:17]),
	}
	contentLength := binary.BigEndian.Uint32(buf[17:21])

	if !f.kind.valid() {
		return frame{}, fmt.Errorf("invalid frame kind %d", f.kind)
	}

	if contentLength == 0 {
		f.data = []byte{}
		return f, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return frame{}, err
	}

	f.data = buf[:contentLength]
	return f, nil
}
