package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"sortbot.ai/internal/sim/world"
)

func TestPacedSink(t *testing.T) {
	var got []uint64
	next := world.FrameSinkFunc(func(f world.Frame) error {
		got = append(got, f.Seq)
		return nil
	})

	if s := newPacedSink(context.Background(), next, 0); s == nil {
		t.Fatalf("zero interval should pass the sink through")
	}

	s := newPacedSink(context.Background(), next, 5*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.WriteFrame(world.Frame{Seq: uint64(i)}); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("frames were not paced")
	}
	if len(got) != 3 {
		t.Fatalf("got=%v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := newPacedSink(ctx, next, time.Hour)
	if err := slow.WriteFrame(world.Frame{Seq: 9}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SORTBOT_TEST_INT", "42")
	t.Setenv("SORTBOT_TEST_BAD", "x")
	t.Setenv("SORTBOT_TEST_BOOL", "true")
	t.Setenv("SORTBOT_TEST_STR", " ./arena.yaml ")

	if got := envInt("SORTBOT_TEST_INT", 1); got != 42 {
		t.Fatalf("envInt=%d", got)
	}
	if got := envInt("SORTBOT_TEST_BAD", 7); got != 7 {
		t.Fatalf("bad int should fall back, got %d", got)
	}
	if !envBool("SORTBOT_TEST_BOOL", false) {
		t.Fatalf("envBool should be true")
	}
	if got := envStr("SORTBOT_TEST_STR", "x"); got != "./arena.yaml" {
		t.Fatalf("envStr=%q", got)
	}
	if got := envStr("SORTBOT_TEST_UNSET", "def"); got != "def" {
		t.Fatalf("envStr default=%q", got)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("disabled index: idx=%v err=%v", idx, err)
	}
	t.Setenv("SORTBOT_INDEX_BACKEND", "d1")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("unknown backend should fail")
	}
	t.Setenv("SORTBOT_INDEX_BACKEND", "sqlite")
	idx, err = openRuntimeIndex(t.TempDir(), false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite index: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
}
