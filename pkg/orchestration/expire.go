package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

// ExpireSaga fails a saga whose executor died or outlived the deadline and,
// when sagas are enabled, compensates the steps its persisted record shows
// as completed. The in-flight path compensates from live step state; here
// only the record survives, so the claim identity is rebuilt from the
// product catalog and every compensator is best effort.
func (o *Orchestrator) ExpireSaga(ctx context.Context, record *types.SagaExecution, reason string) error {
	logger := log.WithSagaID(record.ID)

	record.State = types.SagaStateFailed
	record.Error = reason
	record.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateSaga(record); err != nil {
		return fmt.Errorf("fail saga %s: %w", record.ID, err)
	}

	o.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventPlacementFailed,
		Message: fmt.Sprintf("Saga %s expired: %s", record.ID, reason),
		Metadata: map[string]string{
			"saga_id":   record.ID,
			"product":   record.Product,
			"namespace": record.Namespace,
			"name":      record.Name,
		},
	})

	if !o.configBool(types.ConfigSagaEnabled, true) {
		return nil
	}

	record.State = types.SagaStateCompensating
	record.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateSaga(record); err != nil {
		return fmt.Errorf("mark saga %s compensating: %w", record.ID, err)
	}

	for i := len(record.StepsCompleted) - 1; i >= 0; i-- {
		switch record.StepsCompleted[i] {
		case types.StepApplyClaim:
			o.expireApplyClaim(ctx, record, logger)
		case types.StepRegister:
			o.expireRegister(record, logger)
		}
	}

	record.State = types.SagaStateRolledBack
	record.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateSaga(record); err != nil {
		return fmt.Errorf("mark saga %s rolled back: %w", record.ID, err)
	}

	o.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventSagaRolledBack,
		Message: fmt.Sprintf("Saga %s rolled back", record.ID),
		Metadata: map[string]string{
			"saga_id":   record.ID,
			"product":   record.Product,
			"namespace": record.Namespace,
			"name":      record.Name,
		},
	})
	return nil
}

// expireApplyClaim deletes the claim the saga applied. Standalone runs
// never applied one, in which case the delete is a harmless miss.
func (o *Orchestrator) expireApplyClaim(ctx context.Context, record *types.SagaExecution, logger zerolog.Logger) {
	def, ok := o.registry.Get(record.Product)
	if !ok {
		logger.Warn().Str("product", record.Product).Msg("Product no longer registered, skipping claim compensation")
		return
	}
	ref := provisioner.Ref{
		APIVersion: def.APIVersion,
		Kind:       def.Kind,
		Namespace:  record.Namespace,
		Name:       record.Name,
	}
	if err := o.prov.Delete(ctx, ref); err != nil {
		logger.Warn().Err(err).Msg("Could not delete claim during compensation")
	}
}

// expireRegister marks the saga's placement FAILED.
func (o *Orchestrator) expireRegister(record *types.SagaExecution, logger zerolog.Logger) {
	placementID := record.PlacementID
	if placementID == "" {
		rec, err := o.store.GetPlacementByName(record.Namespace, record.Name)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not resolve placement during compensation")
			return
		}
		placementID = rec.ID
	}

	rec, err := o.store.GetPlacement(placementID)
	if err != nil {
		logger.Warn().Err(err).Str("placement_id", placementID).Msg("Could not load placement during compensation")
		return
	}
	rec.Status = types.PlacementFailed
	rec.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdatePlacement(rec); err != nil {
		logger.Warn().Err(err).Str("placement_id", placementID).Msg("Could not mark placement failed during compensation")
	}
}
