package task

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestGoRunsAndWaits(t *testing.T) {
	s := New(nil, nil)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		s.Go("worker", func() error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
	}
	s.Wait()

	if ran != 5 {
		t.Fatalf("ran = %d, want 5", ran)
	}
}

func TestErrorRoutedToFailureHandler(t *testing.T) {
	var mu sync.Mutex
	var failures []string
	s := New(nil, func(name string, err error) {
		mu.Lock()
		failures = append(failures, name+": "+err.Error())
		mu.Unlock()
	})

	s.Go("bad", func() error { return errors.New("boom") })
	s.Wait()

	if len(failures) != 1 || failures[0] != "bad: boom" {
		t.Fatalf("failures = %v", failures)
	}
}

func TestPanicCaptured(t *testing.T) {
	var mu sync.Mutex
	var got error
	s := New(nil, func(name string, err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	s.Go("panicky", func() error { panic("kaboom") })
	s.Wait()

	if got == nil || !strings.Contains(got.Error(), "kaboom") {
		t.Fatalf("panic not captured: %v", got)
	}
}
