package userctx

import (
	"context"

	"github.com/blogem/licitacoes/models"
)

// Context key type
type contextKey string

const actorKey contextKey = "actor"
const provenanceKey contextKey = "provenance"

// Provenance describes where a request came from
type Provenance struct {
	SourceIP  string
	UserAgent string
	RequestID string
}

// SetActor adds the authenticated actor to the request context
func SetActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the actor from the request context. Requests without
// an authenticated user yield the zero Actor, which renders as "System".
func GetActor(ctx context.Context) models.Actor {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	if !ok {
		return models.Actor{}
	}
	return actor
}

// SetProvenance adds request provenance to the context
func SetProvenance(ctx context.Context, p Provenance) context.Context {
	return context.WithValue(ctx, provenanceKey, p)
}

// GetProvenance retrieves request provenance from the context
func GetProvenance(ctx context.Context) Provenance {
	p, _ := ctx.Value(provenanceKey).(Provenance)
	return p
}

// NewEvent builds an audit event stamped with the actor and provenance
// carried by ctx
func NewEvent(ctx context.Context, table models.AffectedTable, op models.Operation, recordID *int64, before, after *models.Snapshot) models.AuditEvent {
	p := GetProvenance(ctx)
	return models.AuditEvent{
		Actor:     GetActor(ctx),
		Table:     table,
		Operation: op,
		RecordID:  recordID,
		Before:    before,
		After:     after,
		SourceIP:  p.SourceIP,
		UserAgent: p.UserAgent,
		RequestID: p.RequestID,
	}
}
