package rawblock

import (
	"testing"

	"github.com/klauspost/compress/zstd"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCompressionRoundTrip(t *testing.T) {
	Convey(`A block written with level 10 decompresses to the original lines`, t, func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(10)))
		So(err, ShouldBeNil)
		dec, err := zstd.NewReader(nil)
		So(err, ShouldBeNil)

		raw := "first line\nsecond line\nthird line"
		compressed := enc.EncodeAll([]byte(raw), nil)
		decompressed, err := dec.DecodeAll(compressed, nil)
		So(err, ShouldBeNil)
		So(string(decompressed), ShouldEqual, raw)
	})
}
