package apperr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Unauthorized("no identity"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{BadRequest("bad input"), http.StatusBadRequest},
		{Unavailable("over capacity"), http.StatusServiceUnavailable},
		{Internal("boom", nil), http.StatusInternalServerError},
		{&Error{Type: "mystery"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), "type %s", tt.err.Type)
	}
}

func TestError_Message(t *testing.T) {
	plain := NotFound("session not found")
	assert.Equal(t, "not_found: session not found", plain.Error())

	cause := errors.New("connection refused")
	wrapped := Internal("failed to load session", cause)
	assert.Equal(t, "internal: failed to load session: connection refused", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Internal("wrapper", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithField(t *testing.T) {
	err := NotFound("session not found").
		WithField("session_id", "abc123").
		WithField("attempt", 2)

	assert.Equal(t, "abc123", err.Context["session_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	structured := Forbidden("nope")
	assert.Same(t, structured, AsStructuredError(structured))

	plain := errors.New("something broke")
	wrapped := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, wrapped.Type)
	assert.ErrorIs(t, wrapped, plain)
}

func TestMiddleware_RendersStructuredError(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/boom", func(c echo.Context) error {
		return NotFound("session not found").WithField("session_id", "abc123")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{
		"error": "session not found",
		"type": "not_found",
		"context": {"session_id": "abc123"}
	}`, rec.Body.String())
}

func TestMiddleware_WrapsPlainError(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("database exploded")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "internal server error", "type": "internal"}`, rec.Body.String())
}

func TestMiddleware_PassesSuccessThrough(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "fine")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
}

func TestMiddleware_EchoHTTPErrorKeepsStatus(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	// no route registered: echo raises its own 404 HTTPError

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nosuch", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeBadRequest},
		{http.StatusUnauthorized, TypeUnauthorized},
		{http.StatusForbidden, TypeForbidden},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusServiceUnavailable, TypeUnavailable},
		{http.StatusBadGateway, TypeInternal},
	}
	for _, tt := range tests {
		wrapped := WrapHTTPError(echo.NewHTTPError(tt.code, "oops"))
		assert.Equal(t, tt.want, wrapped.Type, "code %d", tt.code)
		assert.Equal(t, "oops", wrapped.Message)
	}

	cause := errors.New("inner")
	withInternal := WrapHTTPError(echo.NewHTTPError(http.StatusNotFound).SetInternal(cause))
	assert.Equal(t, "internal server error", withInternal.Message)
	assert.ErrorIs(t, withInternal, cause)
}
