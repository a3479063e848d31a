package server

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type calcService struct{}

func (c *calcService) Add(a, b int) (int, error) {
	return a + b, nil
}

func (c *calcService) Greet(ctx context.Context, name string) string {
	return "hi " + name
}

func (c *calcService) Fail() error {
	return errors.New("boom")
}

func (c *calcService) Panic() {
	panic("kaboom")
}

func TestServiceCall(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}

	// Wire parameters arrive widened: ints come back from the codec as int64.
	result, err := svc.call(context.Background(), "Add", []any{int64(3), int64(5)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if result != 8 {
		t.Errorf("Add: got %v, want 8", result)
	}
}

func TestServiceCallWithContext(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}
	result, err := svc.call(context.Background(), "Greet", []any{"Jack"})
	if err != nil {
		t.Fatalf("Greet failed: %v", err)
	}
	if result != "hi Jack" {
		t.Errorf("got %v, want hi Jack", result)
	}
}

func TestServiceCallError(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.call(context.Background(), "Fail", nil)
	if err == nil || err.Error() != "boom" {
		t.Errorf("got %v, want boom", err)
	}
}

func TestServiceCallPanicRecovered(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.call(context.Background(), "Panic", nil)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("got %v, want handler panic containing kaboom", err)
	}
}

func TestServiceCallUnknownMethod(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.call(context.Background(), "Missing", nil)
	if err == nil || !strings.Contains(err.Error(), "no such method") {
		t.Errorf("got %v, want no such method", err)
	}
}

func TestServiceCallArityMismatch(t *testing.T) {
	svc, err := newService("Calc", &calcService{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.call(context.Background(), "Add", []any{int64(1)})
	if err == nil {
		t.Error("expected arity error")
	}
}

func TestNewServiceRejectsNonStruct(t *testing.T) {
	if _, err := newService("Bad", 42); err == nil {
		t.Error("expected error for non-pointer receiver")
	}
}
