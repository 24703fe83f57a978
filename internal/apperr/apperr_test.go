package apperr

import (
	"testing"

	"github.com/pkg/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "validation", err: Validation("bad %s", "input"), want: KindValidation},
		{name: "wrapped not found", err: errors.Wrap(NotFound("bus not found"), "load bus"), want: KindNotFound},
		{name: "invalid state", err: InvalidState("Trip is already in progress"), want: KindInvalidState},
		{name: "forbidden", err: Forbidden("no"), want: KindForbidden},
		{name: "unauthenticated", err: Unauthenticated("no token"), want: KindUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsKeepsMessage(t *testing.T) {
	err := errors.Wrap(FieldValidation("invalid input", map[string]string{"title": "required"}), "send")
	e, ok := As(err)
	if !ok {
		t.Fatal("As() = false, want true")
	}
	if e.Message != "invalid input" || e.Fields["title"] != "required" {
		t.Errorf("As() = %+v", e)
	}
	if err.Error() != "send: invalid input" {
		t.Errorf("Error() = %q", err.Error())
	}
}
