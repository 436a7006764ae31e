package pipeline

import (
	"context"
	"testing"
)

func TestCancelTokenStartsNotCancelled(t *testing.T) {
	tok := NewCancelToken()
	if tok.Cancelled() {
		t.Fatal("fresh token reported cancelled")
	}
}

func TestCancelMarksCancelled(t *testing.T) {
	tok := NewCancelToken()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token did not report cancelled after Cancel")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	tok := NewCancelToken()
	tok.Cancel()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token did not report cancelled after repeated Cancel")
	}
}

func TestGuardReleaseCancelsToken(t *testing.T) {
	tok := NewCancelToken()
	guard := NewGuard(tok)
	if tok.Cancelled() {
		t.Fatal("token cancelled before guard released")
	}
	guard.Release()
	if !tok.Cancelled() {
		t.Fatal("token not cancelled after guard released")
	}
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	tok := NewCancelToken()
	guard := NewGuard(tok)
	guard.Release()
	guard.Release()
	if !tok.Cancelled() {
		t.Fatal("token not cancelled after repeated Release")
	}
}

func TestCancelTokenDoneClosesOnCancel(t *testing.T) {
	tok := NewCancelToken()
	select {
	case <-tok.Done():
		t.Fatal("Done() channel closed before Cancel")
	default:
	}

	tok.Cancel()

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done() channel not closed after Cancel")
	}
}

func TestCancelTokenErrMatchesContextCanceled(t *testing.T) {
	tok := NewCancelToken()
	if err := tok.Err(); err != nil {
		t.Fatalf("Err() = %v before Cancel, want nil", err)
	}

	tok.Cancel()

	if err := tok.Err(); err != context.Canceled {
		t.Fatalf("Err() = %v after Cancel, want context.Canceled", err)
	}
}

func TestCancelTokenImplementsContext(t *testing.T) {
	var _ context.Context = NewCancelToken()
}
