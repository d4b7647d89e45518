// Package shmhealth wires a shm.Manager's liveness and readiness into
// github.com/heptiolabs/healthcheck, the library the teacher lineage uses
// for its HTTP health endpoints.
package shmhealth

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// NewHandler returns a healthcheck.Handler with one liveness check (the
// manager attached successfully and remains valid) and one readiness check
// (at least one buffer is currently available for read or write).
func NewHandler(m *shm.Manager) healthcheck.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("shm-segment-attached", func() error {
		if !m.IsValid() {
			return fmt.Errorf("shm: manager %d is not attached to a valid segment", m.ManagerID())
		}
		return nil
	})

	h.AddReadinessCheck("shm-buffer-available", func() error {
		if !m.IsValid() {
			return fmt.Errorf("shm: manager %d is not attached to a valid segment", m.ManagerID())
		}
		if !m.ReadyForRead() && !m.ReadyForWrite(false) {
			return fmt.Errorf("shm: no buffer currently ready for read or write")
		}
		return nil
	})

	return h
}
