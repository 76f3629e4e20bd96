/*
Package events provides the in-memory broker for control-plane pub/sub.

The broker broadcasts lifecycle events to interested subscribers: saga
outcomes, placement changes, replication pair transitions, provider health
flips. Components stay loosely coupled by observing the stream instead of
calling each other.

# Architecture

Non-blocking pub/sub over buffered channels:

	┌───────────────────── EVENT BROKER ─────────────────────┐
	│                                                          │
	│  Publisher → Event Channel (buffer: 100)                 │
	│       ↓                                                  │
	│  Broadcast Loop (single goroutine)                       │
	│       ↓                                                  │
	│  Subscriber Channels (buffer: 50 each)                   │
	│                                                          │
	│  Event Types:                                            │
	│    placement.created / placement.failed                  │
	│    saga.completed / saga.rolled_back                     │
	│    provider.health.changed                               │
	│    pair.created                                          │
	│    pair.failover.completed / pair.failover.aborted       │
	│    experiment.created                                    │
	└──────────────────────────────────────────────────────────┘

# Core Components

Broker: topic-agnostic fan-out. Every subscriber sees every event; filtering
happens at the consumer. Publish never blocks the caller: the central
channel absorbs bursts and a full subscriber buffer drops that subscriber's
copy rather than stalling the loop.

Event: id, type, timestamp, human-readable message, and a flat string
metadata map (saga_id, pair_id, product, namespace, name).

# Usage

Publishing:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventSagaCompleted,
		Message: "Saga 4f1c completed for default/orders-db",
		Metadata: map[string]string{"saga_id": "4f1c", "name": "orders-db"},
	})

Consuming:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		switch event.Type {
		case events.EventPlacementFailed:
			// react
		}
	}

# Integration Points

The saga executor publishes placement and saga events; the replication
manager publishes pair events; the scheduler's health registry publishes
provider.health.changed. The API server streams the feed to clients and the
metrics collectors count events by type.

# Design Patterns

Delivery is at-most-once and in-process. Anything that must survive a
restart belongs in the store, not on the bus; events carry pointers (ids),
not authoritative state.
*/
package events
