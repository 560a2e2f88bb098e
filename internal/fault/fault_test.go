package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(UnsupportedSize, "size %q is not supported", "9x9"))
	assert.Equal(t, UnsupportedSize, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(WriteFailed, cause, "write %s", "a.png")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "WriteFailed: write a.png: disk full", err.Error())
	assert.Equal(t, "write a.png", MessageOf(err))
}

func TestMessageOfPlainError(t *testing.T) {
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
}
