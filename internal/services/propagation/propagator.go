package propagation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/storage"
)

// Collection is a game-record collaborator the propagator keeps consistent
// with the identity store. Both operations are idempotent: running them
// when nothing references the identity is a no-op.
type Collection interface {
	// Name identifies the collection in results, logs and outbox tasks
	Name() string
	// ReplaceIdentity rewrites every reference to oldID (player entries
	// and winner fields) to newID, returning the number of games
	// updated. When stampPrevious is set, rewritten player entries also
	// record oldID as their previousIdentityId so the rewrite can be
	// reversed.
	ReplaceIdentity(ctx context.Context, oldID, newID model.IdentityID, stampPrevious bool) (int, error)
	// RestoreIdentity reverses a stamped rewrite: player entries whose
	// previousIdentityId equals prevID get their identityId set back to
	// prevID and the marker cleared, returning the number of games
	// updated
	RestoreIdentity(ctx context.Context, prevID model.IdentityID) (int, error)
}

// Result is the outcome of propagating to one collection. A non-nil Err
// means the collection is stale but repairable: the identity store has
// already committed and an outbox task has been enqueued for retry.
type Result struct {
	Collection string
	Updated    int
	Err        error
}

// Options control a propagation run
type Options struct {
	// StampPrevious records the old identity on rewritten player
	// entries; set for link operations so unlink can find them
	StampPrevious bool
}

// Propagator rewrites identity references inside external game records
// after a merge, link, or unlink changes which identity is canonical.
// Collections are injected at construction; a failure on one never blocks
// the others.
type Propagator struct {
	collections []Collection
	storage     storage.Storage
	clock       clock.Clock
	idgen       idgen.Generator
	logger      *slog.Logger
}

// New creates a Propagator over the given collections
func New(
	store storage.Storage,
	clk clock.Clock,
	gen idgen.Generator,
	logger *slog.Logger,
	collections ...Collection,
) *Propagator {
	return &Propagator{
		collections: collections,
		storage:     store,
		clock:       clk,
		idgen:       gen,
		logger:      logger,
	}
}

// Collections returns the names of the collections the propagator serves
func (p *Propagator) Collections() []string {
	names := make([]string, len(p.collections))
	for i, c := range p.collections {
		names[i] = c.Name()
	}
	return names
}

// Propagate rewrites oldID to newID across every collection. It is called
// only after the identity-store mutation it reflects has committed; a
// per-collection failure is recorded in the results and enqueued for
// retry, never surfaced as a hard error.
func (p *Propagator) Propagate(ctx context.Context, oldID, newID model.IdentityID, opts Options) []Result {
	results := make([]Result, 0, len(p.collections))
	for _, c := range p.collections {
		updated, err := c.ReplaceIdentity(ctx, oldID, newID, opts.StampPrevious)
		if err != nil {
			p.logger.Error("propagation failed",
				slog.String("collection", c.Name()),
				slog.String("old_identity_id", string(oldID)),
				slog.String("new_identity_id", string(newID)),
				slog.String("error", err.Error()),
			)
			p.enqueue(ctx, &model.PropagationTask{
				ID:            model.TaskID(p.idgen.NewID()),
				Collection:    c.Name(),
				Op:            model.OpReplace,
				OldIdentityID: oldID,
				NewIdentityID: newID,
				StampPrevious: opts.StampPrevious,
				CreatedAt:     p.clock.Now(),
				LastError:     err.Error(),
			})
		}
		results = append(results, Result{Collection: c.Name(), Updated: updated, Err: err})
	}
	return results
}

// Restore reverses a stamped rewrite for prevID across every collection
func (p *Propagator) Restore(ctx context.Context, prevID model.IdentityID) []Result {
	results := make([]Result, 0, len(p.collections))
	for _, c := range p.collections {
		updated, err := c.RestoreIdentity(ctx, prevID)
		if err != nil {
			p.logger.Error("restore propagation failed",
				slog.String("collection", c.Name()),
				slog.String("identity_id", string(prevID)),
				slog.String("error", err.Error()),
			)
			p.enqueue(ctx, &model.PropagationTask{
				ID:            model.TaskID(p.idgen.NewID()),
				Collection:    c.Name(),
				Op:            model.OpRestore,
				OldIdentityID: prevID,
				CreatedAt:     p.clock.Now(),
				LastError:     err.Error(),
			})
		}
		results = append(results, Result{Collection: c.Name(), Updated: updated, Err: err})
	}
	return results
}

// Apply runs a single outbox task against its collection
func (p *Propagator) Apply(ctx context.Context, task *model.PropagationTask) (int, error) {
	c := p.collection(task.Collection)
	if c == nil {
		return 0, fmt.Errorf("%w: %s", model.ErrUnknownCollection, task.Collection)
	}

	switch task.Op {
	case model.OpRestore:
		return c.RestoreIdentity(ctx, task.OldIdentityID)
	default:
		return c.ReplaceIdentity(ctx, task.OldIdentityID, task.NewIdentityID, task.StampPrevious)
	}
}

func (p *Propagator) collection(name string) Collection {
	for _, c := range p.collections {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// enqueue records a failed propagation for the outbox worker. If even the
// outbox write fails there is nothing more to do in-request; the failure
// is logged for a manual sweep.
func (p *Propagator) enqueue(ctx context.Context, task *model.PropagationTask) {
	if err := p.storage.EnqueueTask(ctx, task); err != nil {
		p.logger.Error("failed to enqueue propagation task",
			slog.String("collection", task.Collection),
			slog.String("old_identity_id", string(task.OldIdentityID)),
			slog.String("new_identity_id", string(task.NewIdentityID)),
			slog.String("error", err.Error()),
		)
	}
}

// TotalUpdated sums the per-collection update counts in a result set
func TotalUpdated(results []Result) int {
	total := 0
	for _, r := range results {
		total += r.Updated
	}
	return total
}

// FirstError returns the first per-collection error in a result set, or
// nil if every collection succeeded
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
