package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator produces surrogate row ids. It holds a single snowflake node so
// ids generated within the same millisecond still differ by sequence number.
// If the node cannot be initialized it falls back to KSUID strings.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for nodeID (0..1023).
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

// Next returns a new id, at most 27 characters long.
func (g *IDGenerator) Next() string {
	if g == nil || g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}

var (
	defaultGen     *IDGenerator
	defaultGenOnce sync.Once
)

// DefaultIDGenerator returns a process-wide generator whose node id comes
// from SNOWFLAKE_NODE (default 1).
func DefaultIDGenerator() *IDGenerator {
	defaultGenOnce.Do(func() {
		nodeID := int64(1)
		if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				nodeID = n
			}
		}
		defaultGen = NewIDGenerator(nodeID)
	})
	return defaultGen
}

