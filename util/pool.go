package util

import (
	"sync"

	"goattempt/capability"
)

// BufPool provides reusable receive buffers, reducing GC pressure on
// receive loops that re-arm AsyncReceive after every completion.
var BufPool = sync.Pool{
	New: func() interface{} {
		return new(capability.Buffer)
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *capability.Buffer {
	return BufPool.Get().(*capability.Buffer)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *capability.Buffer) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
