package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesWrappedNamedError(t *testing.T) {
	err := fmt.Errorf("accept request: %w", apperr.ErrTeamFull)

	assert.ErrorIs(t, err, apperr.ErrTeamFull)
	assert.NotErrorIs(t, err, apperr.ErrAlreadyDecided)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "team_full", apperr.CodeOf(err))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal_error", apperr.CodeOf(err))
}

func TestExternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.External("create order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidation_Kind(t *testing.T) {
	err := apperr.Validation("name is required")

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "name is required", err.Error())
}
