package session

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/posturekit/posturebackend/models"
)

// Coordinator owns the single active report session. It holds an immutable
// snapshot behind an atomic pointer; every mutation is a pure transition
// applied with a compare-and-swap retry loop, so concurrent callers observe
// linearizable updates without a lock. Consumers only ever receive value
// copies of the snapshot.
type Coordinator struct {
	current atomic.Pointer[models.ReportSession]
}

// NewCoordinator creates a coordinator with an empty (id-less) session.
func NewCoordinator() *Coordinator {
	c := &Coordinator{}
	empty := models.ReportSession{}
	c.current.Store(&empty)
	return c
}

// update applies a transition against the latest snapshot, retrying on
// contention, and returns the snapshot that was installed (or, when the
// transition is a no-op, the snapshot it was applied to).
func (c *Coordinator) update(transition func(models.ReportSession) models.ReportSession) models.ReportSession {
	for {
		old := c.current.Load()
		next := transition(*old)
		if c.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Current returns a point-in-time snapshot of the active session.
func (c *Coordinator) Current() models.ReportSession {
	return *c.current.Load()
}

// CurrentSideState returns a point-in-time snapshot of one side's state.
func (c *Coordinator) CurrentSideState(side models.Side) models.SideState {
	return c.current.Load().SideState(side)
}

// StartNewIfNeeded returns the current session id, creating a fresh session
// first if none is active. Idempotent until the next Reset.
func (c *Coordinator) StartNewIfNeeded() string {
	installed := c.update(func(s models.ReportSession) models.ReportSession {
		if s.ID != "" {
			return s
		}
		return models.NewReportSession(uuid.NewString())
	})
	return installed.ID
}

// Reset discards the current session, starts a brand-new one and returns its id.
func (c *Coordinator) Reset() string {
	installed := c.update(func(models.ReportSession) models.ReportSession {
		return models.NewReportSession(uuid.NewString())
	})
	return installed.ID
}

// SetOriginal replaces the side's original image path. A fresh photo
// invalidates all downstream processing for that side: crop, result id and
// both readiness flags are cleared.
func (c *Coordinator) SetOriginal(side models.Side, path string) {
	c.update(func(s models.ReportSession) models.ReportSession {
		st := s.SideState(side)
		st.OriginalPath = path
		st.CroppedPath = ""
		st.ResultID = ""
		st.HasAuto = false
		st.HasFinal = false
		return s.WithSideState(st)
	})
}

// SetCropped replaces the side's cropped image path. A new crop requires
// reprocessing, so both readiness flags drop; the original path and the
// result id slot are preserved.
func (c *Coordinator) SetCropped(side models.Side, path string) {
	c.update(func(s models.ReportSession) models.ReportSession {
		st := s.SideState(side)
		st.CroppedPath = path
		st.HasAuto = false
		st.HasFinal = false
		return s.WithSideState(st)
	})
}

// EnsureResultID returns the side's result id, atomically assigning a fresh
// one when unset. Concurrent callers racing on an unset id converge on the
// single id that wins the swap: losers retry against the winner's snapshot
// and adopt its id.
func (c *Coordinator) EnsureResultID(side models.Side) string {
	installed := c.update(func(s models.ReportSession) models.ReportSession {
		st := s.SideState(side)
		if st.ResultID != "" {
			return s
		}
		st.ResultID = uuid.NewString()
		return s.WithSideState(st)
	})
	return installed.SideState(side).ResultID
}

// MarkAutoReady records that automatic processing finished for the side.
func (c *Coordinator) MarkAutoReady(side models.Side) {
	c.update(func(s models.ReportSession) models.ReportSession {
		st := s.SideState(side)
		st.HasAuto = true
		return s.WithSideState(st)
	})
}

// MarkFinalReady records a finalized result for the side. Finalization never
// occurs without an automatic baseline, so HasAuto is forced true as well.
func (c *Coordinator) MarkFinalReady(side models.Side) {
	c.update(func(s models.ReportSession) models.ReportSession {
		st := s.SideState(side)
		st.HasFinal = true
		st.HasAuto = true
		return s.WithSideState(st)
	})
}
