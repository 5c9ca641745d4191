package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_CleanupClosesInReverseOrder(t *testing.T) {
	var order []string
	stmt := &fakeCloser{name: "stmt", log: &order}
	rows := &fakeCloser{name: "rows", log: &order, err: errBoom}
	inner := &fakeCloser{name: "inner-rows", log: &order}

	tr := NewTracker(nil)
	tr.Track(stmt)
	tr.Track(rows)
	tr.Track(inner)
	tr.Track(nil)

	assert.Equal(t, 3, tr.Len())

	tr.Cleanup()

	assert.Equal(t, []string{"inner-rows", "rows", "stmt"}, order, "a close error must not stop the rest")
	assert.Equal(t, 0, tr.Len())

	tr.Cleanup()
	for _, c := range []*fakeCloser{stmt, rows, inner} {
		assert.Equal(t, 1, c.closed, "%s closed exactly once", c.name)
	}
}
