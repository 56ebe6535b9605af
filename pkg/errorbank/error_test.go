package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		http int
		grpc codes.Code
	}{
		{BadRequest("x"), http.StatusBadRequest, codes.InvalidArgument},
		{Unauthorized("x"), http.StatusUnauthorized, codes.Unauthenticated},
		{Forbidden("x"), http.StatusForbidden, codes.PermissionDenied},
		{NotFound("x"), http.StatusNotFound, codes.NotFound},
		{Conflict("x"), http.StatusConflict, codes.Aborted},
		{Unprocessable("x"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Internal("x"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.http, tc.err.StatusCode())
			assert.Equal(t, tc.grpc, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")
	appErr := From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.Equal(t, "internal error", appErr.Message())
	assert.ErrorIs(t, appErr, cause)

	assert.Nil(t, From(nil))
}

func TestCauseAndDetailsSurviveWrapping(t *testing.T) {
	sentinel := errors.New("insufficient stock")
	err := BadRequest("product 7 is short", WithCause(sentinel), WithDetail("product_id", int64(7)))

	wrapped := errors.Join(errors.New("outer"), err)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.True(t, IsKind(wrapped, KindBadRequest))
	assert.False(t, IsKind(wrapped, KindConflict))
	assert.Equal(t, int64(7), From(wrapped).Details()["product_id"])
}
