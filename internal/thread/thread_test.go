package thread

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/threadctl/internal/testutil/testlog"
)

func TestCreateNilEntry(t *testing.T) {
	testlog.Start(t)
	if _, err := Create(nil, nil); !errors.Is(err, ErrNilEntry) {
		t.Fatalf("expected ErrNilEntry, got %v", err)
	}
}

func TestJoinReturnsExactStatus(t *testing.T) {
	testlog.Start(t)
	th, err := Create(func(arg any) any {
		return arg.(int) * 2
	}, 21)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()
	if th.ID() == NoThread {
		t.Fatalf("expected a live kernel id")
	}
	status, err := th.Join(time.Time{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if status != 42 {
		t.Fatalf("status: got %v want 42", status)
	}
}

func TestJoinBlocksUntilEntryReturns(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	th, err := Create(func(any) any {
		<-release
		return "done"
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()

	start := time.Now()
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()
	status, err := th.Join(time.Time{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("join returned before entry: %v", elapsed)
	}
	if status != "done" {
		t.Fatalf("status: got %v", status)
	}
}

func TestJoinDeadlineElapses(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	th, err := Create(func(any) any {
		<-release
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()

	if _, err := th.Join(time.Now().Add(50 * time.Millisecond)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The record stays joinable after a timeout.
	close(release)
	if _, err := th.Join(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("second join: %v", err)
	}
}

func TestJoinDeadlineAlreadyPassed(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	defer close(release)
	th, err := Create(func(any) any {
		<-release
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()
	if _, err := th.Join(time.Now().Add(-time.Second)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for elapsed deadline, got %v", err)
	}
}

func TestDoubleJoinSingleWinner(t *testing.T) {
	testlog.Start(t)
	th, err := Create(func(any) any { return nil }, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()

	const joiners = 8
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = th.Join(time.Time{})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyJoined):
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning joiner, got %d", wins)
	}
}

func TestInterruptGateHoldsOnePending(t *testing.T) {
	testlog.Start(t)
	block := make(chan struct{})
	defer close(block)
	th, err := Create(func(any) any {
		<-block
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.Release()

	th.Interrupt()
	th.Interrupt()
	select {
	case <-th.Gate():
	default:
		t.Fatalf("expected a pending interrupt")
	}
	select {
	case <-th.Gate():
		t.Fatalf("interrupts must coalesce to one pending")
	default:
	}
}
