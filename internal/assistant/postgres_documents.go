package assistant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocumentStore searches the document_chunks table.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentStore creates a new PostgreSQL document store.
func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

// SearchChunks ranks active chunks by the number of search terms they contain.
func (s *PostgresDocumentStore) SearchChunks(ctx context.Context, query string, limit int) ([]string, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []string{}, nil
	}

	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = "%" + t + "%"
	}

	rows, err := s.pool.Query(ctx, `
		SELECT content FROM (
			SELECT c.content, c.created_at,
				(SELECT COUNT(*) FROM unnest($1::text[]) AS p WHERE c.content ILIKE p) AS score
			FROM document_chunks c
			WHERE c.active
		) ranked
		WHERE score > 0
		ORDER BY score DESC, created_at ASC
		LIMIT $2
	`, patterns, limit)
	if err != nil {
		return nil, fmt.Errorf("searching document chunks: %w", err)
	}
	defer rows.Close()

	chunks := []string{}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning document chunk: %w", err)
		}
		chunks = append(chunks, content)
	}
	return chunks, rows.Err()
}

// FileIDs returns the uploaded file ids of active documents, oldest first.
func (s *PostgresDocumentStore) FileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT openai_file_id FROM document_chunks
		WHERE active AND openai_file_id <> ''
		GROUP BY openai_file_id
		ORDER BY MIN(created_at) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing document files: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert stores a chunk.
func (s *PostgresDocumentStore) Insert(ctx context.Context, c Chunk) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_chunks (id, source, content, openai_file_id) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Source, c.Content, c.FileID,
	)
	if err != nil {
		return fmt.Errorf("inserting document chunk: %w", err)
	}
	return nil
}
