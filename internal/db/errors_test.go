package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(OpGet, "k", nil))

	cause := errors.New("READONLY")
	err := Wrap(OpHSet, "finsight:chunk:c1", cause)
	assert.EqualError(t, err, "HSET finsight:chunk:c1: READONLY")
	assert.ErrorIs(t, err, cause)

	var dbErr *Error
	assert.ErrorAs(t, err, &dbErr)
	assert.Equal(t, OpHSet, dbErr.Op)
}

func TestError_NoTarget(t *testing.T) {
	err := Wrap(OpSearch, "", errors.New("timeout"))
	assert.EqualError(t, err, "FT.SEARCH: timeout")
}
