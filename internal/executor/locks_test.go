package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionLocksTryAcquire(t *testing.T) {
	locks := newSessionLocks()

	release, ok := locks.tryAcquire("s1")
	if !ok {
		t.Fatal("first tryAcquire = false, want true")
	}
	if _, ok := locks.tryAcquire("s1"); ok {
		t.Error("second tryAcquire = true, want refusal while held")
	}
	if _, ok := locks.tryAcquire("s2"); !ok {
		t.Error("tryAcquire on other id = false, want independent locks")
	}

	release()
	if _, ok := locks.tryAcquire("s1"); !ok {
		t.Error("tryAcquire after release = false, want true")
	}
}

func TestDeviceLocksSerialize(t *testing.T) {
	locks := newDeviceLocks()

	release, err := locks.acquire(context.Background(), "dev1")
	if err != nil {
		t.Fatalf("acquire error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := locks.acquire(ctx, "dev1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second acquire error = %v, want DeadlineExceeded", err)
	}

	if otherRelease, err := locks.acquire(context.Background(), "dev2"); err != nil {
		t.Errorf("acquire other device error = %v, want independent locks", err)
	} else {
		otherRelease()
	}

	release()
	release2, err := locks.acquire(context.Background(), "dev1")
	if err != nil {
		t.Fatalf("acquire after release error = %v", err)
	}
	release2()
}

func TestDeviceLocksHandOff(t *testing.T) {
	locks := newDeviceLocks()

	release, err := locks.acquire(context.Background(), "dev1")
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := locks.acquire(context.Background(), "dev1")
		if err != nil {
			t.Errorf("blocked acquire error = %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire completed while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked acquire never completed after release")
	}
}
