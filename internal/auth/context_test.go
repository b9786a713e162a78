package auth

import (
	"context"
	"testing"

	"github.com/itemdesk/itemdesk/internal/model"
)

func TestPrincipalContext_RoundTrip(t *testing.T) {
	t.Parallel()

	p := &model.Principal{UserID: 7, Username: "alice"}
	ctx := ContextWithPrincipal(context.Background(), p)

	if got := PrincipalFromContext(ctx); got != p {
		t.Errorf("PrincipalFromContext = %v, want %v", got, p)
	}
	if got := UserIDFromContext(ctx); got != 7 {
		t.Errorf("UserIDFromContext = %d, want 7", got)
	}
}

func TestPrincipalContext_Anonymous(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if PrincipalFromContext(ctx) != nil {
		t.Error("expected nil principal for anonymous context")
	}
	if UserIDFromContext(ctx) != 0 {
		t.Error("expected zero user ID for anonymous context")
	}
}

func TestMustPrincipalFromContext_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic without principal")
		}
	}()
	MustPrincipalFromContext(context.Background())
}
