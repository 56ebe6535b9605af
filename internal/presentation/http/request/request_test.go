package request

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/harvest/pkg/errorbank"
)

func newContext(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestID(t *testing.T) {
	c := newContext("/")
	c.SetParamNames("id")

	c.SetParamValues("42")
	id, err := ID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-1"} {
		c.SetParamValues(bad)
		_, err := ID(c, "id")
		assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest), bad)
	}
}

func TestQueryParams(t *testing.T) {
	c := newContext("/?limit=5&from=2024-03-01&to=2024-03-02T10:00:00Z&bad=x")

	limit, err := Int(c, "limit")
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	missing, err := Int(c, "offset")
	require.NoError(t, err)
	assert.Zero(t, missing)

	_, err = Int(c, "bad")
	assert.Error(t, err)

	from, err := Time(c, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)

	to, err := Time(c, "to")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), to)

	_, err = Time(c, "bad")
	assert.Error(t, err)
}

func TestActorRequiresAuthentication(t *testing.T) {
	_, err := Actor(newContext("/"))
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}
