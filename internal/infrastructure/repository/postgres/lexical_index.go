package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// LexicalIndex is the Postgres full-text side of retrieval. It doubles as
// the ingestion sink (LexicalStore) and the query-time retriever.
type LexicalIndex struct {
	db *sql.DB
}

func NewLexicalIndex(db *sql.DB) *LexicalIndex {
	return &LexicalIndex{db: db}
}

func (l *LexicalIndex) Name() string {
	return domain.RetrieverLexical
}

// IndexChunks upserts chunk rows. The tsvector column is generated by the
// database, so re-indexing a document replaces its terms atomically per
// chunk.
func (l *LexicalIndex) IndexChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_chunks (document_id, chunk_index, filename, content, tokens)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (document_id, chunk_index)
DO UPDATE SET filename = EXCLUDED.filename, content = EXCLUDED.content, tokens = EXCLUDED.tokens
`, chunk.DocumentID, chunk.ChunkIndex, chunk.Filename, chunk.Text, chunk.Tokens)
		if err != nil {
			return fmt.Errorf("upsert chunk %s/%d: %w", chunk.DocumentID, chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

// Search ranks chunks with ts_rank over the generated tsvector. The
// 'simple' configuration keeps matching language-neutral; ties break on
// chunk identity so results stay deterministic for a fixed index.
func (l *LexicalIndex) Search(ctx context.Context, text string, topK int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("lexical search: %w: empty query", domain.ErrInvalidInput)
	}

	rows, err := l.db.QueryContext(ctx, `
SELECT document_id, chunk_index, filename, content, ts_rank(content_tsv, q) AS rank
FROM document_chunks, websearch_to_tsquery('simple', $1) AS q
WHERE content_tsv @@ q
ORDER BY rank DESC, document_id ASC, chunk_index ASC
LIMIT $2
`, text, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, topK)
	for rows.Next() {
		var chunk domain.RetrievedChunk
		if err := rows.Scan(
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Filename,
			&chunk.Text,
			&chunk.Score,
		); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return out, nil
}
