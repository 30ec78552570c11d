package ports

import (
	"context"

	"github.com/google/uuid"
)

type actorKey struct{}

// WithActor attaches the calling user. Collaborators use it to enforce project ownership.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the calling user, if any.
func ActorFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// SnapshotKind names which view a published snapshot belongs to
type SnapshotKind string

const (
	SnapshotBoard    SnapshotKind = "board"
	SnapshotTimeline SnapshotKind = "timeline"
)

// SnapshotPublisher fans state snapshots out to renderers. Implementations must not block the caller.
type SnapshotPublisher interface {
	Publish(projectID uuid.UUID, kind SnapshotKind, version uint64, snapshot any)
}
