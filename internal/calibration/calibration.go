// Package calibration holds the process-wide direction offset applied to
// every wind direction on read. The value lives in an atomic int32 for
// lock-free reads from every request and worker goroutine; writes take the
// file-backed document's own lock and then swap the atomic.
package calibration

import (
	"sync/atomic"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
)

// Manager is the Calibration Manager: an atomically-readable offset backed
// by a JSON document, bounds-checked to [-180, 180].
type Manager struct {
	offset atomic.Int32
	store  *filestore.CalibrationStore
}

// New loads the current offset from path and returns a ready Manager.
func New(path string) (*Manager, error) {
	store, err := filestore.OpenCalibrationStore(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{store: store}
	m.offset.Store(int32(store.Get()))
	return m, nil
}

// OffsetDeg returns the current offset. Implements storage.CalibrationSource.
func (m *Manager) OffsetDeg() int {
	return int(m.offset.Load())
}

// Set validates and persists a new offset, then updates the atomic value.
// Rejects anything outside [-180, 180] without touching persisted state.
func (m *Manager) Set(offsetDeg int) error {
	if offsetDeg < -180 || offsetDeg > 180 {
		return apperr.New(apperr.KindInvalidInput, "calibration offset must be in [-180, 180]", nil)
	}
	if err := m.store.Set(offsetDeg); err != nil {
		return apperr.Wrap(apperr.KindStorageFatal, "persisting calibration offset", err)
	}
	m.offset.Store(int32(offsetDeg))
	return nil
}
