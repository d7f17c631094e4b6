package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements guidedcontent.DocumentStore over a single JSONB table.
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL document store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL document store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// NewPool opens a pool for databaseURL. A non-empty schema becomes the
// search_path of every connection.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, guidedcontent.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: duplicate document id", operation)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (s *Store) Get(ctx context.Context, collection, id string) (guidedcontent.Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	var data []byte
	if err := s.db.QueryRow(ctx, query, collection, id).Scan(&data); err != nil {
		return nil, handlePostgresError("get document", err)
	}
	return decode(id, data)
}

func (s *Store) List(ctx context.Context, collection string, filter guidedcontent.Filter) ([]guidedcontent.Document, error) {
	query := `
		SELECT id, data FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at, id`

	if filter == nil {
		filter = guidedcontent.Filter{}
	}
	containment, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	rows, err := s.db.Query(ctx, query, collection, string(containment))
	if err != nil {
		return nil, handlePostgresError("list documents", err)
	}
	defer rows.Close()

	var docs []guidedcontent.Document
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, handlePostgresError("scan document", err)
		}
		doc, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list documents", err)
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, doc guidedcontent.Document) (string, error) {
	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`

	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.db.Exec(ctx, query, collection, id, data); err != nil {
		return "", handlePostgresError("add document", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, doc guidedcontent.Document) error {
	query := `
		UPDATE documents SET data = $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`

	data, err := encode(doc)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, collection, id, data)
	if err != nil {
		return handlePostgresError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	tag, err := s.db.Exec(ctx, query, collection, id)
	if err != nil {
		return handlePostgresError("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	return nil
}

func encode(doc guidedcontent.Document) (string, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" {
			stripped[k] = v
		}
	}
	data, err := json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

func decode(id string, data []byte) (guidedcontent.Document, error) {
	var doc guidedcontent.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}
