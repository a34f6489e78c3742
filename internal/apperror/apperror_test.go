package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("video", "abc123"), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("title", "title is required"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("User already exists"), ErrConflict, true},
		{"Forbidden wraps ErrForbidden", Forbidden("not the author"), ErrForbidden, true},
		{"Unauthorized wraps ErrUnauthorized", Unauthorized("bad credentials"), ErrUnauthorized, true},
		{"LimitExceeded wraps ErrLimitExceeded", LimitExceeded("too many"), ErrLimitExceeded, true},
		{"TooLarge wraps ErrTooLarge", TooLarge("file", "upload exceeds the size limit"), ErrTooLarge, true},
		{"NotFound does NOT match ErrValidation", NotFound("video", "abc123"), ErrValidation, false},
		{"Forbidden does NOT match ErrUnauthorized", Forbidden("nope"), ErrUnauthorized, false},
		{"wrapped NotFound still matches", fmt.Errorf("loading video: %w", NotFound("video", "x")), ErrNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"NotFound message includes resource and id", NotFound("comment", "c1"), "comment not found with id c1"},
		{"ValidationFailed uses custom message", ValidationFailed("query", "query is required"), "query is required"},
		{"Conflict uses custom message", Conflict("User already exists"), "User already exists"},
		{"LimitExceeded uses custom message", LimitExceeded("You have already commented this video 3 times!"), "You have already commented this video 3 times!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("service: %w", ValidationFailed("tags", "tag is empty"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Field != "tags" {
		t.Errorf("Field = %q, want %q", appErr.Field, "tags")
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("playlist", "p1")
	if err.Unwrap() != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrNotFound)
	}
}
