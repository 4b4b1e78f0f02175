package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

type node struct {
	data    v1.Payload
	subkeys map[string]v1.Payload
}

// NodeStore implements storage.NodeStore.
type NodeStore struct {
	mu    sync.Mutex
	nodes map[string]node
}

func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[string]node)}
}

func (s *NodeStore) Get(ctx context.Context, nodeID, subkey string) (v1.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	payload := n.data
	if subkey != "" {
		payload = n.subkeys[subkey]
	}
	if payload == nil {
		return nil, storage.ErrNotFound
	}
	return payload.Clone()
}

func (s *NodeStore) Set(ctx context.Context, nodeID string, data v1.Payload) error {
	clone, err := data.Clone()
	if err != nil {
		return fmt.Errorf("failed to copy node %s: %w", nodeID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID] = node{data: clone}
	return nil
}

func (s *NodeStore) SetSubkeys(ctx context.Context, nodeID string, subkeys map[string]v1.Payload) error {
	n := node{subkeys: make(map[string]v1.Payload, len(subkeys))}
	for key, payload := range subkeys {
		clone, err := payload.Clone()
		if err != nil {
			return fmt.Errorf("failed to copy node %s: %w", nodeID, err)
		}
		if key == "" {
			n.data = clone
			continue
		}
		n.subkeys[key] = clone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID] = n
	return nil
}

// AttachmentStore implements storage.AttachmentStore. The stored bytes may
// deliberately disagree with the recorded size.
type AttachmentStore struct {
	mu          sync.Mutex
	attachments map[eventKey][]*v1.EventAttachment
	blobs       map[int64][]byte
}

func NewAttachmentStore() *AttachmentStore {
	return &AttachmentStore{
		attachments: make(map[eventKey][]*v1.EventAttachment),
		blobs:       make(map[int64][]byte),
	}
}

// Add records an attachment and its bytes.
func (s *AttachmentStore) Add(attachment v1.EventAttachment, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{projectID: attachment.ProjectID, eventID: attachment.EventID}
	s.attachments[key] = append(s.attachments[key], &attachment)
	s.blobs[attachment.ID] = append([]byte(nil), data...)
}

func (s *AttachmentStore) ListEventAttachments(ctx context.Context, projectID int64, eventID string) ([]*v1.EventAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*v1.EventAttachment
	for _, att := range s.attachments[eventKey{projectID: projectID, eventID: eventID}] {
		att := *att
		out = append(out, &att)
	}
	return out, nil
}

func (s *AttachmentStore) OpenAttachment(ctx context.Context, attachment *v1.EventAttachment) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[attachment.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
