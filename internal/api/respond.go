package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrms/internal/httpmiddleware"
	"hrms/internal/metrics"
	"hrms/internal/validation"
)

const (
	msgValidationFailed = "Validation failed"
	msgNotFound         = "Not found."
	msgInternal         = "Internal server error"
)

// bindJSON decodes the body into dst. An empty body decodes as {} so missing
// fields surface as field errors rather than a parse failure.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return validation.FieldErrors{{Field: typeErr.Field, Message: typeMessage(typeErr.Type)}}
	}
	return validation.Invalid("", "JSON parse error - "+err.Error())
}

func typeMessage(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "A valid integer is required."
	case reflect.String:
		return "Not a valid string."
	default:
		return "Incorrect type."
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": msgNotFound})
}

// failure shapes how field errors are reported: detailed adds "errors" keyed by
// field under a generic message, otherwise only the first message is returned.
type failure int

const (
	firstMessage failure = iota
	detailed
)

// fail maps service errors onto the response envelope.
func (h *Handler) fail(c *gin.Context, err error, style failure) {
	var fe validation.FieldErrors
	var ve *validation.Error
	switch {
	case errors.As(err, &fe) && len(fe) > 0:
		metrics.Rejections.WithLabelValues(validation.KindInvalid.String(), fe[0].Field).Inc()
		body := gin.H{"success": false, "message": fe.First()}
		if style == detailed {
			body["message"] = msgValidationFailed
			body["errors"] = fe.Map()
		}
		c.JSON(http.StatusBadRequest, body)

	case errors.As(err, &ve):
		metrics.Rejections.WithLabelValues(ve.Kind.String(), ve.Field).Inc()
		status := http.StatusBadRequest
		if ve.Kind == validation.KindNotFound {
			status = http.StatusNotFound
		}
		body := gin.H{"success": false, "message": ve.Message}
		if style == detailed && ve.Field != "" {
			body["errors"] = map[string][]string{ve.Field: {ve.Message}}
		}
		c.JSON(status, body)

	default:
		_ = c.Error(err)
		h.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(httpmiddleware.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternal})
	}
}
