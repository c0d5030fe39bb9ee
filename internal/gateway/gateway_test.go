package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fruitsalade/swalang/internal/models"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   error
	}{
		{"network", Network("list", errors.New("dial tcp: refused")), KindNetwork, ErrNetwork},
		{"validation", Validation("create", "duplicate name"), KindValidation, ErrValidation},
		{"not found", NotFound("delete", "node gone"), KindNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if !errors.Is(tt.err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.is)
			}

			// Survives wrapping
			wrapped := fmt.Errorf("rename node: %w", tt.err)
			if KindOf(wrapped) != tt.kind {
				t.Errorf("KindOf(wrapped) = %v, want %v", KindOf(wrapped), tt.kind)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsNetwork(Network("x", nil)) {
		t.Error("IsNetwork false for network error")
	}
	if IsNetwork(Validation("x", "y")) {
		t.Error("IsNetwork true for validation error")
	}
	if !IsValidation(Validation("x", "y")) {
		t.Error("IsValidation false")
	}
	if !IsNotFound(NotFound("x", "y")) {
		t.Error("IsNotFound false")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error should be KindUnknown")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := Network("list", cause)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("network error should unwrap to its cause")
	}
	if got := err.Error(); got != "list: network: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
}

type panicGateway struct{ Gateway }

func (panicGateway) ListNodes(context.Context, *string) ([]models.Node, error) {
	panic("boom")
}

func TestInstrumentRecoversPanic(t *testing.T) {
	gw := Instrument("test", panicGateway{})

	nodes, err := gw.ListNodes(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error from panicking gateway")
	}
	if nodes != nil {
		t.Errorf("expected nil nodes, got %v", nodes)
	}
	if KindOf(err) != KindUnknown {
		t.Errorf("kind = %v, want unknown", KindOf(err))
	}
}
