package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// flateNewReader wraps klauspost/compress's raw-deflate reader behind an
// io.ReadCloser, used as the fallback path when a sector's zlib bit turns
// out to carry a headerless deflate stream.
func flateNewReader(data []byte) io.ReadCloser {
	return flate.NewReader(bytes.NewReader(data))
}
