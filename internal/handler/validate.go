package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/match"
)

// MaxTagLength is the longest tag a request may carry.
const MaxTagLength = 40

// maxJSONBody caps JSON request bodies. Uploads have their own limit.
const maxJSONBody = 1 << 20

// REQUEST VALIDATION:
// Request bodies decode into small DTO structs whose `validate` tags are
// checked by go-playground/validator. The first failing field becomes an
// apperror.ValidationFailed naming the JSON field, so a bad request looks
// the same whether the handler or the service caught it.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names ("firstName") instead of Go names ("FirstName").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("tag", validateTag)
	return v
}

// validateTag accepts blank tags (the service drops them) and rejects tags
// that are too long or made only of characters the matcher strips.
func validateTag(fl validator.FieldLevel) bool {
	tag := strings.TrimSpace(fl.Field().String())
	if tag == "" {
		return true
	}
	if len(tag) > MaxTagLength {
		return false
	}
	return strings.TrimSpace(match.SanitizeTag(tag)) != ""
}

// decodeJSON reads the body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.TooLarge("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return validateStruct(dst)
}

// validateStruct runs the struct's validate tags.
func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("handler: validating request: %w", err)
	}
	fe := fieldErrs[0]
	field := fe.Field()
	// Slice elements come back as "tags[2]"; report the slice.
	if i := strings.IndexByte(field, '['); i > 0 {
		field = field[:i]
	}
	return apperror.ValidationFailed(field, fieldMessage(field, fe))
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s may hold at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be %s characters or fewer", field, fe.Param())
	case "alphanumunicode":
		return field + " may only contain letters and digits"
	case "tag":
		return fmt.Sprintf("each tag must be %d characters or fewer and contain more than brackets or quotes", MaxTagLength)
	}
	return field + " is invalid"
}

// pageParam reads ?page=N. Missing or malformed values mean page 1;
// paginate clamps the rest.
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
