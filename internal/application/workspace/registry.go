package workspace

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

type key struct {
	user    uuid.UUID
	project uuid.UUID
}

// Registry keeps one workspace per (user, project). All workspaces share the
// coordinator and the snapshot publisher.
type Registry struct {
	repos      ports.Repositories
	projection *timeline.Projection
	coord      *coordinator.Coordinator
	logger     *logger.Logger
	cfg        Config
	publisher  ports.SnapshotPublisher

	mu    sync.Mutex
	items map[key]*Workspace
}

func NewRegistry(repos ports.Repositories, projection *timeline.Projection, coord *coordinator.Coordinator, log *logger.Logger, cfg Config, publisher ports.SnapshotPublisher) *Registry {
	return &Registry{
		repos:      repos,
		projection: projection,
		coord:      coord,
		logger:     log,
		cfg:        cfg,
		publisher:  publisher,
		items:      make(map[key]*Workspace),
	}
}

// Get returns the workspace for userID and projectID, opening it on first
// use. A workspace whose load failed in transport is still registered and
// returned together with the error so the caller can Retry it. One the
// caller may not see, or that does not exist, is dropped and nil is returned.
func (r *Registry) Get(ctx context.Context, userID, projectID uuid.UUID) (*Workspace, error) {
	k := key{user: userID, project: projectID}

	r.mu.Lock()
	if w, ok := r.items[k]; ok {
		r.mu.Unlock()
		return w, nil
	}
	w, err := New(userID, projectID, r.repos, r.projection, r.coord, r.logger, r.cfg, r.publisher)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.items[k] = w
	r.mu.Unlock()

	if err := w.Open(ctx); err != nil {
		switch entities.Classify(err) {
		case entities.KindUnauthorized, entities.KindNotFound:
			r.mu.Lock()
			if r.items[k] == w {
				delete(r.items, k)
			}
			r.mu.Unlock()
			w.Close()
			return nil, err
		}
		return w, err
	}
	return w, nil
}

// Lookup returns an already registered workspace without loading anything
func (r *Registry) Lookup(userID, projectID uuid.UUID) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.items[key{user: userID, project: projectID}]
	return w, ok
}

// Evict drops a workspace; the next Get loads it afresh.
func (r *Registry) Evict(userID, projectID uuid.UUID) {
	r.mu.Lock()
	w, ok := r.items[key{user: userID, project: projectID}]
	delete(r.items, key{user: userID, project: projectID})
	r.mu.Unlock()
	if ok {
		w.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Close releases every workspace and drains pending persistence calls.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	items := r.items
	r.items = make(map[key]*Workspace)
	r.mu.Unlock()

	for _, w := range items {
		w.Close()
	}
	return r.coord.Close(ctx)
}
