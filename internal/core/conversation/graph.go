package conversation

import (
	"context"
	"fmt"
	"log/slog"
)

// Node is one typed step of the conversation graph.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// Graph executes its nodes in order, once per turn. The topology is plain
// data, so inserting a step (a safety gate, a re-ranking pass) means adding a
// node, not rewriting the pipeline.
type Graph struct {
	nodes  []Node
	logger *slog.Logger
}

type graphOptions struct {
	logger *slog.Logger
}

type GraphOption func(*graphOptions)

func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(o *graphOptions) {
		o.logger = logger
	}
}

// NewGraph builds a graph from an ordered node sequence.
func NewGraph(nodes []Node, opts ...GraphOption) *Graph {
	o := &graphOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Graph{
		nodes:  nodes,
		logger: o.logger,
	}
}

// Run drives the state through every node. The first node error aborts the
// turn; nodes that can degrade gracefully handle their own failures and
// return nil.
func (g *Graph) Run(ctx context.Context, state *State) error {
	for _, node := range g.nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.logger.Debug("running graph node", "node", node.Name(), "session_id", state.SessionID)
		if err := node.Run(ctx, state); err != nil {
			return fmt.Errorf("node %s: %w", node.Name(), err)
		}
	}
	return nil
}
