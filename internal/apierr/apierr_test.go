package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindCapacityExceeded, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if From(nil) != nil {
			t.Error("From(nil) should be nil")
		}
	})

	t.Run("wrapped classified error keeps kind", func(t *testing.T) {
		err := fmt.Errorf("create project: %w", Capacity("Project limit reached"))
		got := From(err)
		if got.Kind != KindCapacityExceeded {
			t.Errorf("Kind = %v, want capacity_exceeded", got.Kind)
		}
		if got.Message != "Project limit reached" {
			t.Errorf("Message = %q", got.Message)
		}
	})

	t.Run("plain error becomes internal with generic message", func(t *testing.T) {
		cause := errors.New("pq: relation \"users\" does not exist")
		got := From(cause)
		if got.Kind != KindInternal {
			t.Errorf("Kind = %v, want internal", got.Kind)
		}
		if got.Message != InternalMessage {
			t.Errorf("Message = %q, want %q", got.Message, InternalMessage)
		}
		if !errors.Is(got, cause) {
			t.Error("internal error should unwrap to its cause")
		}
	})
}

func TestIsKind(t *testing.T) {
	if !IsKind(NotFound("x"), KindNotFound) {
		t.Error("IsKind(NotFound, KindNotFound) = false")
	}
	if IsKind(errors.New("x"), KindNotFound) {
		t.Error("IsKind(plain error) = true")
	}
}
