package certificates

import (
	"encoding/pem"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

var pemBufferPool bytebufferpool.Pool

// Wipe zeroes the full capacity of content.
func Wipe(content []byte) {
	clear(content[:cap(content)])
}

// encodePEM writes a single PEM block into a pooled buffer. Callers must hand the buffer to releaseBuffer.
func encodePEM(blockType string, der []byte) (*bytebufferpool.ByteBuffer, error) {
	buffer := pemBufferPool.Get()
	if err := pem.Encode(buffer, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		releaseBuffer(buffer)
		return nil, fmt.Errorf("encode %s block: %w", blockType, err)
	}
	return buffer, nil
}

// releaseBuffer zeroes the buffer before returning it to the pool.
func releaseBuffer(buffer *bytebufferpool.ByteBuffer) {
	Wipe(buffer.B)
	buffer.Reset()
	pemBufferPool.Put(buffer)
}
