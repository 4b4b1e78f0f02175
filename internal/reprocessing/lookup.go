package reprocessing

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// PayloadLookup is one place an unprocessed payload may live. Lookup returns
// storage.ErrNotFound when the payload is not there.
type PayloadLookup interface {
	Name() string
	Lookup(ctx context.Context, projectID int64, eventID string) (v1.Payload, error)
}

// DefaultLookups returns the lookup order: the cache backup, the processed
// event's node, then the node an accepted event's backup was moved to.
func DefaultLookups(cache storage.PayloadCache, nodes storage.NodeStore) []PayloadLookup {
	return []PayloadLookup{
		cacheLookup{cache: cache},
		eventNodeLookup{nodes: nodes},
		unprocessedNodeLookup{nodes: nodes},
	}
}

type cacheLookup struct {
	cache storage.PayloadCache
}

func (cacheLookup) Name() string { return "cache" }

func (l cacheLookup) Lookup(ctx context.Context, projectID int64, eventID string) (v1.Payload, error) {
	return l.cache.Get(ctx, storage.UnprocessedCacheKey(projectID, eventID))
}

type eventNodeLookup struct {
	nodes storage.NodeStore
}

func (eventNodeLookup) Name() string { return "event_node" }

func (l eventNodeLookup) Lookup(ctx context.Context, projectID int64, eventID string) (v1.Payload, error) {
	return l.nodes.Get(ctx, storage.EventNodeID(projectID, eventID), storage.UnprocessedSubkey)
}

type unprocessedNodeLookup struct {
	nodes storage.NodeStore
}

func (unprocessedNodeLookup) Name() string { return "unprocessed_node" }

func (l unprocessedNodeLookup) Lookup(ctx context.Context, projectID int64, eventID string) (v1.Payload, error) {
	return l.nodes.Get(ctx, storage.UnprocessedNodeID(projectID, eventID), "")
}

// findUnprocessedPayload tries each lookup in order. Only absence moves on to
// the next one; any other error is returned as is.
func (e *Engine) findUnprocessedPayload(ctx context.Context, projectID int64, eventID string) (v1.Payload, string, error) {
	for _, lookup := range e.lookups {
		payload, err := lookup.Lookup(ctx, projectID, eventID)
		switch {
		case err == nil && payload != nil:
			return payload, lookup.Name(), nil
		case err == nil, errors.Is(err, storage.ErrNotFound):
			continue
		default:
			return nil, "", fmt.Errorf("payload lookup %s: %w", lookup.Name(), err)
		}
	}
	return nil, "", &CannotReprocessError{Kind: PayloadNotFound, ProjectID: projectID, EventID: eventID}
}
