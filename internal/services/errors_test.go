package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MatchesKind(t *testing.T) {
	err := fmt.Errorf("create job: %w", validationError("bad %s", "status"))

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "bad status", svcErr.Message)
	assert.Equal(t, "validation error: bad status", svcErr.Error())
}
