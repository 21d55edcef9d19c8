package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrDuplicateIdentifier, `student "SV001" already exists`)

	assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
	assert.False(t, errors.Is(err, ErrStudentNotFound))
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestIsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("edit: %w", Clone(ErrStudentNotFound, ""))

	assert.ErrorIs(t, wrapped, ErrStudentNotFound)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}
