package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atlasforge/atlas/internal/types"
)

// SaveGraphSnapshot persists a complete node/edge set under a snapshot id
// in one transaction. Snapshots are immutable once written.
func (s *Store) SaveGraphSnapshot(ctx context.Context, id string, builtAt time.Time,
	nodes []types.GraphNode, edges []types.GraphEdge) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO graph_snapshots (id, built_at) VALUES (?, ?)
	`, id, builtAt); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_nodes (snapshot_id, id, kind, ref_id) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range nodes {
		if _, err := nodeStmt.ExecContext(ctx, id, n.ID, n.Kind, n.RefID); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_edges (snapshot_id, source, target, kind, weight)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		if _, err := edgeStmt.ExecContext(ctx, id, e.Source, e.Target, e.Kind, e.Weight); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// LoadGraphSnapshot reads the node/edge set for a snapshot id. Returns
// nil slices if the snapshot does not exist.
func (s *Store) LoadGraphSnapshot(ctx context.Context, id string) ([]types.GraphNode, []types.GraphEdge, error) {
	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, ref_id FROM graph_nodes
		WHERE snapshot_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer nodeRows.Close()

	var nodes []types.GraphNode
	for nodeRows.Next() {
		var n types.GraphNode
		if err := nodeRows.Scan(&n.ID, &n.Kind, &n.RefID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT source, target, kind, weight FROM graph_edges
		WHERE snapshot_id = ? ORDER BY source, target, kind
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []types.GraphEdge
	for edgeRows.Next() {
		var e types.GraphEdge
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Kind, &e.Weight); err != nil {
			return nil, nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeRows.Err()
}

// LatestGraphSnapshotID returns the id of the most recently built
// snapshot, or empty string if none exists.
func (s *Store) LatestGraphSnapshotID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM graph_snapshots ORDER BY built_at DESC, id DESC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return id, nil
}
