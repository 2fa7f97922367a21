package objectstore

import (
	"bytes"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	Convey(`With a Store`, t, func() {
		root := t.TempDir()
		s, err := New(root+"/objects", root+"/uploads")
		So(err, ShouldBeNil)

		Convey(`Finalize assembles chunks in order`, func() {
			prefix, err := s.NewUploadPrefix()
			So(err, ShouldBeNil)

			_, err = s.WriteChunk(prefix, 0, bytes.NewReader([]byte("hello ")))
			So(err, ShouldBeNil)
			_, err = s.WriteChunk(prefix, 1, bytes.NewReader([]byte("world")))
			So(err, ShouldBeNil)

			digest, relPath, size, err := s.FinalizeUpload(prefix, 2)
			So(err, ShouldBeNil)
			So(size, ShouldEqual, 11)
			So(digest, ShouldNotBeEmpty)

			f, err := s.Open(relPath)
			So(err, ShouldBeNil)
			defer f.Close()
			b, err := os.ReadFile(f.Name())
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "hello world")
		})

		Convey(`Finalize dedupes identical content`, func() {
			write := func() (string, string) {
				prefix, err := s.NewUploadPrefix()
				So(err, ShouldBeNil)
				_, err = s.WriteChunk(prefix, 0, bytes.NewReader([]byte("same bytes")))
				So(err, ShouldBeNil)
				digest, relPath, _, err := s.FinalizeUpload(prefix, 1)
				So(err, ShouldBeNil)
				return digest, relPath
			}
			d1, p1 := write()
			d2, p2 := write()
			So(d1, ShouldEqual, d2)
			So(p1, ShouldEqual, p2)
		})

		Convey(`Re-writing a chunk index overwrites it`, func() {
			prefix, err := s.NewUploadPrefix()
			So(err, ShouldBeNil)
			_, err = s.WriteChunk(prefix, 0, bytes.NewReader([]byte("first")))
			So(err, ShouldBeNil)
			_, err = s.WriteChunk(prefix, 0, bytes.NewReader([]byte("second")))
			So(err, ShouldBeNil)

			_, relPath, size, err := s.FinalizeUpload(prefix, 1)
			So(err, ShouldBeNil)
			So(size, ShouldEqual, 6)

			f, err := s.Open(relPath)
			So(err, ShouldBeNil)
			defer f.Close()
			b, err := os.ReadFile(f.Name())
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "second")
		})
	})
}
