package unwind

import (
	"context"
	"errors"
	"testing"
)

func TestRunReverseOrder(t *testing.T) {
	s := New(nil)
	var order []string
	for _, name := range []string{"service", "device", "pool", "dataset"} {
		name := name
		s.Push(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"dataset", "pool", "device", "service"}
	if len(order) != len(want) {
		t.Fatalf("ran %d teardowns, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v want %v", order, want)
		}
	}
}

func TestRunContinuesPastFailure(t *testing.T) {
	s := New(nil)
	var ran []string
	boom := errors.New("boom")
	s.Push("first", func(context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	s.Push("second", func(context.Context) error {
		ran = append(ran, "second")
		return boom
	})
	err := s.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if len(ran) != 2 {
		t.Fatalf("a failing teardown must not stop the drain; ran=%v", ran)
	}
}

func TestRunIdempotent(t *testing.T) {
	s := New(nil)
	count := 0
	s.Push("only", func(context.Context) error {
		count++
		return nil
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if count != 1 {
		t.Fatalf("teardown ran %d times, want 1", count)
	}
}
