package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/umbral-systems/tailguard/internal/quorum"
)

// StartWorkers launches all background goroutines. Call with a cancellable
// context for graceful shutdown.
func (s *Server) StartWorkers(ctx context.Context) {
	go s.runExpirySweeper(ctx)
	go s.runValidationFinalizer(ctx)
	go s.runTrustDecay(ctx)
	if s.db != nil {
		go s.runSnapshots(ctx)
	}
}

// --- Policy Expiry Sweeper ---

// runExpirySweeper periodically expires lapsed policies, releasing their
// admitted coverage back to the pool.
func (s *Server) runExpirySweeper(ctx context.Context) {
	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if n := s.sweepExpired(); n > 0 {
				s.logger.Info("expired policies swept", zap.Int("count", n))
			}
		}
	}
}

// sweepExpired expires every lapsed Active policy. Returns the number swept.
func (s *Server) sweepExpired() int {
	swept := 0
	for _, id := range s.vault.ExpirablePolicies() {
		if err := s.vault.ExpireSweep(id); err != nil {
			s.logger.Warn("expire sweep", zap.Uint64("policy_id", id), zap.Error(err))
			continue
		}
		swept++
	}
	return swept
}

// --- Validation Finalizer ---

// runValidationFinalizer periodically expires validation requests whose
// deadline lapsed before the quorum resolved, so linked claims can settle
// as rejected instead of hanging.
func (s *Server) runValidationFinalizer(ctx context.Context) {
	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if n := s.finalizeLapsed(); n > 0 {
				s.logger.Info("validation requests expired", zap.Int("count", n))
			}
		}
	}
}

// finalizeLapsed expires every unresolved request past its deadline. Returns
// the number finalized.
func (s *Server) finalizeLapsed() int {
	finalized := 0
	for _, id := range s.quorum.Unresolved() {
		err := s.quorum.FinalizeExpired(id)
		if errors.Is(err, quorum.ErrDeadlineNotReached) {
			continue
		}
		if err != nil {
			s.logger.Warn("finalize validation", zap.Uint64("request_id", id), zap.Error(err))
			continue
		}
		finalized++
	}
	return finalized
}

// --- Trust Decay ---

// runTrustDecay periodically materializes lazy trust decay for every agent
// with a record.
func (s *Server) runTrustDecay(ctx context.Context) {
	interval := s.decayInterval
	if interval <= 0 {
		interval = time.Hour
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			for _, agent := range s.trust.Agents() {
				if err := s.trust.Decay(agent); err != nil {
					s.logger.Warn("trust decay", zap.Uint64("agent_id", agent), zap.Error(err))
				}
			}
		}
	}
}

// --- State Snapshots ---

// runSnapshots periodically persists the full core state, and once more on
// shutdown so a clean stop loses nothing.
func (s *Server) runSnapshots(ctx context.Context) {
	interval := s.snapshotInterval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			s.persistSnapshot()
			return
		case <-time.After(interval):
			s.persistSnapshot()
		}
	}
}

// persistSnapshot writes every component's state to the database. Failures
// are logged; the in-memory state remains authoritative.
func (s *Server) persistSnapshot() {
	if err := s.db.SaveVaultState(s.vault.Snapshot()); err != nil {
		s.logger.Error("persist vault state", zap.Error(err))
	}
	if err := s.db.SaveTrustRecords(s.trust.Export()); err != nil {
		s.logger.Error("persist trust records", zap.Error(err))
	}
	reqs, stakes := s.quorum.Export()
	if err := s.db.SaveQuorum(reqs, stakes); err != nil {
		s.logger.Error("persist quorum", zap.Error(err))
	}
	if err := s.db.SaveAgents(s.registry.List()); err != nil {
		s.logger.Error("persist agents", zap.Error(err))
	}
	if reading, ok := s.oracle.Current(); ok {
		if err := s.db.SaveOracleReading(reading); err != nil {
			s.logger.Error("persist oracle reading", zap.Error(err))
		}
	}
}
