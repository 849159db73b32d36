package bencher

import (
	"errors"
	"testing"
	"time"
)

func TestMeasureRecordsSample(t *testing.T) {
	b := New(nil)
	err := b.Measure("sleep", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	samples := b.Samples()
	if len(samples) != 1 {
		t.Fatalf("samples=%d want 1", len(samples))
	}
	if samples[0].Label != "sleep" {
		t.Fatalf("label=%q want sleep", samples[0].Label)
	}
	if samples[0].Elapsed < 0.005 {
		t.Fatalf("elapsed=%v suspiciously small", samples[0].Elapsed)
	}
}

func TestMeasureRecordsOnError(t *testing.T) {
	b := New(nil)
	boom := errors.New("boom")
	err := b.Measure("failing", func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if len(b.Samples()) != 1 {
		t.Fatalf("failed step must still record its sample")
	}
}

func TestPushPreservesOrder(t *testing.T) {
	b := New(nil)
	b.Push("a", 1)
	b.Push("b", 2)
	b.Push("c", 3)
	samples := b.Samples()
	want := []string{"a", "b", "c"}
	for i, label := range want {
		if samples[i].Label != label {
			t.Fatalf("samples[%d]=%q want %q", i, samples[i].Label, label)
		}
	}
}
