package compression

import "github.com/klauspost/compress/zstd"

// One shared encoder/decoder pair serves every Zstd value. With nil options
// neither constructor can fail, and both are safe for concurrent
// EncodeAll/DecodeAll use, so callers skip the setup cost per blob.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

type Zstd struct{}

func (Zstd) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}
