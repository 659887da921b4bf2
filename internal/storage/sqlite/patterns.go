package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// PutPattern inserts or updates a pattern record.
func (s *Store) PutPattern(ctx context.Context, p *types.Pattern) error {
	if err := p.Validate(); err != nil {
		return atlaserrors.Wrap(err, "sqlite", "PutPattern", "validation failed")
	}

	embedding, err := json.Marshal(p.Embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (
			id, name, category, signature, embedding, quality,
			usage_count, status, tags, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			embedding = excluded.embedding,
			quality = excluded.quality,
			usage_count = excluded.usage_count,
			status = excluded.status,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`,
		p.ID, p.Name, p.Category, p.Signature, string(embedding), p.Quality,
		p.UsageCount, p.Status, string(tags), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

// GetPattern retrieves a pattern by ID. Returns nil if not found.
func (s *Store) GetPattern(ctx context.Context, id string) (*types.Pattern, error) {
	return s.scanPattern(s.db.QueryRowContext(ctx, `
		SELECT id, name, category, signature, embedding, quality,
		       usage_count, status, tags, created_at, updated_at
		FROM patterns WHERE id = ?
	`, id))
}

// GetPatternBySignature retrieves a pattern by its normalized signature.
// Returns nil if no pattern carries that signature.
func (s *Store) GetPatternBySignature(ctx context.Context, signature string) (*types.Pattern, error) {
	return s.scanPattern(s.db.QueryRowContext(ctx, `
		SELECT id, name, category, signature, embedding, quality,
		       usage_count, status, tags, created_at, updated_at
		FROM patterns WHERE signature = ?
	`, signature))
}

func (s *Store) scanPattern(row *sql.Row) (*types.Pattern, error) {
	var p types.Pattern
	var embedding, tags sql.NullString

	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Signature, &embedding, &p.Quality,
		&p.UsageCount, &p.Status, &tags, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}

	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &p.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}
	}
	if tags.Valid && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	return &p, nil
}

// ListPatterns returns all patterns, ordered by id for deterministic
// iteration.
func (s *Store) ListPatterns(ctx context.Context) ([]*types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, signature, embedding, quality,
		       usage_count, status, tags, created_at, updated_at
		FROM patterns ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*types.Pattern
	for rows.Next() {
		var p types.Pattern
		var embedding, tags sql.NullString
		err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Signature, &embedding, &p.Quality,
			&p.UsageCount, &p.Status, &tags, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		if embedding.Valid {
			if err := json.Unmarshal([]byte(embedding.String), &p.Embedding); err != nil {
				return nil, fmt.Errorf("decoding embedding: %w", err)
			}
		}
		if tags.Valid && tags.String != "null" {
			if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags: %w", err)
			}
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// AddOccurrence records an occurrence of a pattern in a project. Adding
// the same (pattern, project, location) twice is a no-op.
func (s *Store) AddOccurrence(ctx context.Context, patternID string, occ types.Occurrence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO occurrences (pattern_id, project_id, location, extracted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pattern_id, project_id, location) DO NOTHING
	`, patternID, occ.ProjectID, occ.Location, occ.ExtractedAt)
	if err != nil {
		return fmt.Errorf("failed to add occurrence: %w", err)
	}
	return nil
}

// GetOccurrences returns all occurrences for a pattern, most recent first.
func (s *Store) GetOccurrences(ctx context.Context, patternID string) ([]types.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, location, extracted_at
		FROM occurrences
		WHERE pattern_id = ?
		ORDER BY extracted_at DESC, project_id, location
	`, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to get occurrences: %w", err)
	}
	defer rows.Close()

	var occs []types.Occurrence
	for rows.Next() {
		var o types.Occurrence
		if err := rows.Scan(&o.ProjectID, &o.Location, &o.ExtractedAt); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}

// GetPatternIDsByProject returns the ids of patterns with at least one
// occurrence in the given project.
func (s *Store) GetPatternIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT pattern_id FROM occurrences
		WHERE project_id = ? ORDER BY pattern_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrences by project: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pattern id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
