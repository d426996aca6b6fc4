package analyze

import (
	"context"
	"errors"
	"testing"
)

func TestPacerHonorsCancelledContext(t *testing.T) {
	p := newPacer(1)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first slot should be free: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
