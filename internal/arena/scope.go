package arena

import "gocv.io/x/gocv"

// Scope records the handles acquired inside one WithScoped block.
type Scope struct {
	arena *Arena
	owned []Handle
	kept  map[Handle]bool
}

// WithScoped runs fn and releases every handle acquired through the Scope
// when fn returns, including on error and panic. Handles passed to Keep
// survive and become the caller's responsibility.
func (a *Arena) WithScoped(fn func(s *Scope) error) error {
	s := &Scope{arena: a}
	defer s.release()
	return fn(s)
}

func (s *Scope) release() {
	for i := len(s.owned) - 1; i >= 0; i-- {
		h := s.owned[i]
		if s.kept[h] || !s.arena.Valid(h) {
			continue
		}
		s.arena.Release(h)
	}
	s.owned = nil
}

func (s *Scope) track(h Handle) Handle {
	s.owned = append(s.owned, h)
	return h
}

// Arena returns the arena backing the scope.
func (s *Scope) Arena() *Arena { return s.arena }

// Acquire allocates a scoped buffer.
func (s *Scope) Acquire(kind Kind, dims Dims) Handle {
	return s.track(s.arena.Acquire(kind, dims))
}

// NewMat allocates an empty scoped matrix.
func (s *Scope) NewMat() Handle {
	return s.Acquire(KindMat, Dims{})
}

// AdoptMat takes scoped ownership of m.
func (s *Scope) AdoptMat(m gocv.Mat) Handle {
	return s.track(s.arena.AdoptMat(m))
}

// AdoptPoints takes scoped ownership of pv.
func (s *Scope) AdoptPoints(pv gocv.PointVector) Handle {
	return s.track(s.arena.AdoptPoints(pv))
}

// AdoptContours takes scoped ownership of pvs.
func (s *Scope) AdoptContours(pvs gocv.PointsVector) Handle {
	return s.track(s.arena.AdoptContours(pvs))
}

// Keep detaches h from the scope so it outlives the block.
func (s *Scope) Keep(h Handle) Handle {
	if s.kept == nil {
		s.kept = make(map[Handle]bool)
	}
	s.kept[h] = true
	return h
}

// Mat is shorthand for s.Arena().Mat(h).
func (s *Scope) Mat(h Handle) *gocv.Mat { return s.arena.Mat(h) }

// Points is shorthand for s.Arena().Points(h).
func (s *Scope) Points(h Handle) gocv.PointVector { return s.arena.Points(h) }

// Contours is shorthand for s.Arena().Contours(h).
func (s *Scope) Contours(h Handle) gocv.PointsVector { return s.arena.Contours(h) }
