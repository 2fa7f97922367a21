package uploadsession

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFinalizeChunkCount(t *testing.T) {
	Convey(`finalizeChunkCount`, t, func() {
		Convey(`enforces an exact client-declared expected_chunks`, func() {
			expected := 3
			sess := &Session{ExpectedChunks: &expected, ReceivedChunks: []int{0, 1, 2}}
			n, err := finalizeChunkCount(sess)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})
		Convey(`rejects finalize when fewer than expected_chunks arrived`, func() {
			expected := 3
			sess := &Session{ExpectedChunks: &expected, ReceivedChunks: []int{0, 1}}
			_, err := finalizeChunkCount(sess)
			So(err, ShouldNotBeNil)
		})
		Convey(`enumerates received chunks when expected_chunks was never set`, func() {
			sess := &Session{ReceivedChunks: []int{0, 1, 2, 3}}
			n, err := finalizeChunkCount(sess)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 4)
		})
		Convey(`rejects finalize with no chunks and no expected_chunks`, func() {
			sess := &Session{}
			_, err := finalizeChunkCount(sess)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMergeChunkIndex(t *testing.T) {
	Convey(`mergeChunkIndex`, t, func() {
		Convey(`appends and sorts a new index`, func() {
			So(mergeChunkIndex([]int{0, 2}, 1), ShouldResemble, []int{0, 1, 2})
		})
		Convey(`is idempotent for a repeated index`, func() {
			So(mergeChunkIndex([]int{0, 1}, 1), ShouldResemble, []int{0, 1})
		})
		Convey(`handles an empty starting slice`, func() {
			So(mergeChunkIndex(nil, 0), ShouldResemble, []int{0})
		})
	})
}
