package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has an effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	if err != nil {
		return fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return nil
}

// New generates a new time-ordered int64 ID, unique across processes with
// distinct node ids. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// Generator mints group and activity ids.
type Generator interface {
	NewID() int64
}

// Snowflake is the process-wide Generator backed by New.
type Snowflake struct{}

func (Snowflake) NewID() int64 { return New() }
