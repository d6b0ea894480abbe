package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/audiodrop/musicbox/apperr"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// AbortError writes an error response and stops the handler chain.
func AbortError(ctx *gin.Context, status int, code int, message string) {
	Error(ctx, status, code, message)
	ctx.Abort()
}

// ErrorFrom maps an application error onto an HTTP status and envelope code.
func ErrorFrom(ctx *gin.Context, err error) {
	status, code, msg := Classify(err)
	Error(ctx, status, code, msg)
}

// Classify returns the HTTP status, envelope code and public message for err.
// Storage and unknown errors never expose their text.
func Classify(err error) (int, int, string) {
	switch {
	case errors.Is(err, apperr.ErrTokenExpired):
		return http.StatusUnauthorized, 40102, "token expired"
	case errors.Is(err, apperr.ErrTokenInvalid):
		return http.StatusUnauthorized, 40101, "invalid token"
	case errors.Is(err, apperr.ErrAuth):
		return http.StatusUnauthorized, 40100, "invalid email or password"
	case errors.Is(err, apperr.ErrInvalidName):
		return http.StatusBadRequest, 40001, "invalid name"
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, 40002, "invalid content"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, 40400, "not found"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, 40900, "already exists"
	case apperr.IsStorage(err):
		return http.StatusInternalServerError, 50001, "storage failure"
	default:
		return http.StatusInternalServerError, 50000, "internal error"
	}
}
