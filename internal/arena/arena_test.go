package arena

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestAcquireRelease(t *testing.T) {
	a := New()
	defer a.Close()

	h := a.Acquire(KindMat, Dims{Rows: 4, Cols: 6, Type: gocv.MatTypeCV8UC1})
	if h == 0 {
		t.Fatal("Acquire returned the zero handle")
	}
	if a.Live() != 1 {
		t.Fatalf("Live() = %d, want 1", a.Live())
	}

	m := a.Mat(h)
	if m == nil {
		t.Fatal("Mat returned nil for a live handle")
	}
	if m.Rows() != 4 || m.Cols() != 6 {
		t.Errorf("dims = %dx%d, want 4x6", m.Rows(), m.Cols())
	}

	a.Release(h)
	if a.Live() != 0 {
		t.Errorf("Live() after release = %d, want 0", a.Live())
	}
	if a.Valid(h) {
		t.Error("released handle still reported valid")
	}
}

func TestAcquireKinds(t *testing.T) {
	a := New()
	defer a.Close()

	tests := []struct {
		kind Kind
		name string
	}{
		{KindMat, "mat"},
		{KindPoints, "points"},
		{KindContours, "contours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.kind.String(), tt.name)
			}
			h := a.Acquire(tt.kind, Dims{})
			if !a.Valid(h) {
				t.Fatal("acquired handle is not valid")
			}
			a.Release(h)
		})
	}
}

func TestHandlesAreUnique(t *testing.T) {
	a := New()
	defer a.Close()

	seen := make(map[Handle]bool)
	for i := 0; i < 10; i++ {
		h := a.Acquire(KindPoints, Dims{})
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
		if i%2 == 0 {
			a.Release(h)
		}
	}
	if a.Live() != 5 {
		t.Errorf("Live() = %d, want 5", a.Live())
	}
}

func TestDebugDoubleReleasePanics(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	h := a.Acquire(KindMat, Dims{})
	a.Release(h)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on double release")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrReleased) {
			t.Errorf("panic value = %v, want ErrReleased", r)
		}
	}()
	a.Release(h)
}

func TestDebugUseAfterReleasePanics(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	h := a.Acquire(KindMat, Dims{})
	a.Release(h)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on use after release")
		}
	}()
	a.Mat(h)
}

func TestDebugKindMismatchPanics(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	h := a.Acquire(KindPoints, Dims{})

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrKindMismatch) {
			t.Errorf("panic value = %v, want ErrKindMismatch", r)
		}
	}()
	a.Mat(h)
}

func TestReleaseModeViolationsDoNotPanic(t *testing.T) {
	a := New()
	defer a.Close()

	h := a.Acquire(KindMat, Dims{})
	a.Release(h)
	a.Release(h)
	if m := a.Mat(h); m != nil {
		t.Error("Mat on a released handle returned a matrix")
	}
	a.Release(Handle(9999))
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}

func TestClose(t *testing.T) {
	a := New()
	a.Acquire(KindMat, Dims{Rows: 2, Cols: 2, Type: gocv.MatTypeCV8UC3})
	a.Acquire(KindPoints, Dims{})
	a.AdoptContours(gocv.NewPointsVector())

	if a.Live() != 3 {
		t.Fatalf("Live() = %d, want 3", a.Live())
	}
	a.Close()
	if a.Live() != 0 {
		t.Errorf("Live() after Close = %d, want 0", a.Live())
	}
	a.Close()
}

func TestWithScopedReleases(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	err := a.WithScoped(func(s *Scope) error {
		s.NewMat()
		s.Acquire(KindPoints, Dims{})
		if a.Live() != 2 {
			t.Errorf("Live() inside scope = %d, want 2", a.Live())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScoped returned %v", err)
	}
	if a.Live() != 0 {
		t.Errorf("Live() after scope = %d, want 0", a.Live())
	}
}

func TestWithScopedReleasesOnError(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	sentinel := errors.New("boom")
	err := a.WithScoped(func(s *Scope) error {
		s.NewMat()
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithScoped error = %v, want %v", err, sentinel)
	}
	if a.Live() != 0 {
		t.Errorf("Live() after failing scope = %d, want 0", a.Live())
	}
}

func TestWithScopedReleasesOnPanic(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	func() {
		defer func() { _ = recover() }()
		_ = a.WithScoped(func(s *Scope) error {
			s.NewMat()
			s.NewMat()
			panic("vision failure")
		})
	}()

	if a.Live() != 0 {
		t.Errorf("Live() after panicking scope = %d, want 0", a.Live())
	}
}

func TestScopeKeep(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	var kept Handle
	_ = a.WithScoped(func(s *Scope) error {
		kept = s.Keep(s.NewMat())
		s.NewMat()
		return nil
	})

	if !a.Valid(kept) {
		t.Fatal("kept handle was released by the scope")
	}
	if a.Live() != 1 {
		t.Errorf("Live() = %d, want 1", a.Live())
	}
	a.Release(kept)
}

func TestScopeSkipsExplicitlyReleased(t *testing.T) {
	a := New(WithDebug(true))
	defer a.Close()

	// Debug mode would panic if the scope released h a second time.
	_ = a.WithScoped(func(s *Scope) error {
		h := s.NewMat()
		a.Release(h)
		return nil
	})
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}
}
