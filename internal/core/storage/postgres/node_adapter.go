package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// nodeDocument is the JSONB shape of one archive node. The empty subkey of
// SetSubkeys is the node's main payload.
type nodeDocument struct {
	Data    v1.Payload            `json:"data,omitempty"`
	Subkeys map[string]v1.Payload `json:"subkeys,omitempty"`
}

// NodeAdapter implements storage.NodeStore on the nodestore_node table.
type NodeAdapter struct {
	db *sql.DB
}

func NewNodeAdapter(db *sql.DB) *NodeAdapter {
	return &NodeAdapter{db: db}
}

// Get returns the main payload of a node, or one named subkey.
func (a *NodeAdapter) Get(ctx context.Context, nodeID, subkey string) (v1.Payload, error) {
	var raw []byte
	err := a.db.QueryRowContext(ctx, queryGetNode, nodeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}

	var doc nodeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node %s: %w", nodeID, err)
	}

	payload := doc.Data
	if subkey != "" {
		payload = doc.Subkeys[subkey]
	}
	if payload == nil {
		return nil, storage.ErrNotFound
	}
	return payload, nil
}

// Set replaces the node with a single main payload.
func (a *NodeAdapter) Set(ctx context.Context, nodeID string, data v1.Payload) error {
	return a.write(ctx, nodeID, nodeDocument{Data: data})
}

// SetSubkeys replaces the node with a set of named payloads.
func (a *NodeAdapter) SetSubkeys(ctx context.Context, nodeID string, subkeys map[string]v1.Payload) error {
	doc := nodeDocument{Subkeys: make(map[string]v1.Payload, len(subkeys))}
	for key, payload := range subkeys {
		if key == "" {
			doc.Data = payload
			continue
		}
		doc.Subkeys[key] = payload
	}
	return a.write(ctx, nodeID, doc)
}

func (a *NodeAdapter) write(ctx context.Context, nodeID string, doc nodeDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal node %s: %w", nodeID, err)
	}
	if _, err := a.db.ExecContext(ctx, queryUpsertNode, nodeID, raw); err != nil {
		return fmt.Errorf("failed to write node: %w", err)
	}
	return nil
}
