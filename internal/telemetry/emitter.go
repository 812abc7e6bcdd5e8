package telemetry

import (
	"context"

	"account-security-plane/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to Kafka). Best-effort; callers
// log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
