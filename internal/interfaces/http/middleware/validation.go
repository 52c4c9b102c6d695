package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/flora/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SetupValidator makes validation errors name fields by their json/form tags
// and teaches the validator to read decimal.Decimal values
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// FormatValidationErrors turns a binding error into the error envelope
func FormatValidationErrors(err error, requestID string) dto.Response {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]dto.ValidationDetail, 0, len(verrs))
		for _, e := range verrs {
			details = append(details, dto.ValidationDetail{
				Field:   fieldPath(e),
				Message: validationMessage(e),
			})
		}
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "Request body is empty", requestID)
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID)
	case errors.As(err, &typeErr):
		return dto.NewValidationErrorResponse("Request validation failed", requestID, []dto.ValidationDetail{
			{Field: typeErr.Field, Message: "Must be of type " + typeErr.Type.String()},
		})
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return dto.NewErrorResponse(dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size", requestID)
	}
	return dto.NewErrorResponse(dto.ErrCodeBadRequest, err.Error(), requestID)
}

// HandleValidationError aborts the request with a 400 (or 413) envelope
func HandleValidationError(c *gin.Context, err error) {
	resp := FormatValidationErrors(err, GetRequestID(c))
	c.AbortWithStatusJSON(dto.GetHTTPStatus(resp.Error.Code), resp)
}

// fieldPath drops the top-level struct name: "CreateSaleRequest.items[0].quantity" -> "items[0].quantity"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

var validationMessages = map[string]func(e validator.FieldError) string{
	"required":         func(validator.FieldError) string { return "This field is required" },
	"required_without": func(validator.FieldError) string { return "This field is required" },
	"email":            func(validator.FieldError) string { return "Invalid email format" },
	"uuid":             func(validator.FieldError) string { return "Invalid UUID format" },
	"oneof":            func(e validator.FieldError) string { return "Must be one of: " + e.Param() },
	"gt":               func(e validator.FieldError) string { return "Must be greater than " + e.Param() },
	"gte":              func(e validator.FieldError) string { return "Must be greater than or equal to " + e.Param() },
	"min":              func(e validator.FieldError) string { return bounded("at least", e) },
	"max":              func(e validator.FieldError) string { return bounded("at most", e) },
}

func validationMessage(e validator.FieldError) string {
	if msg, ok := validationMessages[e.Tag()]; ok {
		return msg(e)
	}
	return "Invalid value"
}

// bounded words a min/max failure by what is being counted
func bounded(limit string, e validator.FieldError) string {
	var unit string
	switch e.Kind() {
	case reflect.String:
		unit = "character"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = "item"
	default:
		return "Must be " + limit + " " + e.Param()
	}
	if e.Param() != "1" {
		unit += "s"
	}
	return "Must have " + limit + " " + e.Param() + " " + unit
}
