package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Debug("d", "k", 1)
		l.Info("i")
		l.Warn("w", "error", nil)
		l.Error("e")
	})
	assert.Equal(t, l, orNoop(nil))
}
