package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DefaultBatchLimit mirrors the hosted document store's per-batch operation ceiling.
const DefaultBatchLimit = 500

var (
	// ErrDocumentNotFound is returned when a document id does not exist in the collection.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrBatchLimitExceeded is returned when a batch call carries more items than the store accepts.
	ErrBatchLimitExceeded = errors.New("batch exceeds store operation limit")

	fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// FilterOp is a comparison operator usable in queries.
type FilterOp string

const (
	OpEq  FilterOp = "=="
	OpNeq FilterOp = "!="
	OpGt  FilterOp = ">"
	OpGte FilterOp = ">="
	OpLt  FilterOp = "<"
	OpLte FilterOp = "<="
)

var sqlOperators = map[FilterOp]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Filter compares a top-level document field against a value.
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Where is shorthand for an equality filter.
func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Query describes a collection read.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Document is a stored JSON document.
type Document struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Decode unmarshals the document payload into dest.
func (d Document) Decode(dest interface{}) error {
	if err := json.Unmarshal(d.Data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// DocumentStore keeps schemaless documents in a single PostgreSQL JSONB table.
type DocumentStore struct {
	db         *sqlx.DB
	batchLimit int
}

// NewDocumentStore builds a store; batchLimit <= 0 falls back to DefaultBatchLimit.
func NewDocumentStore(db *sqlx.DB, batchLimit int) *DocumentStore {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &DocumentStore{db: db, batchLimit: batchLimit}
}

// Migrate creates the backing table when missing.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        data JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (collection, id)
    )`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data)`); err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}
	return nil
}

// BatchLimit reports the maximum number of ids accepted by a single BatchDelete.
func (s *DocumentStore) BatchLimit() int {
	return s.batchLimit
}

// Collection scopes operations to a named collection.
func (s *DocumentStore) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

// Collection is a collection-scoped view of the store.
type Collection struct {
	store *DocumentStore
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// BatchLimit reports the per-call limit of BatchDelete.
func (c *Collection) BatchLimit() int {
	return c.store.batchLimit
}

// Get loads a single document.
func (c *Collection) Get(ctx context.Context, id string) (*Document, error) {
	const query = `SELECT collection, id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	var doc Document
	if err := c.store.db.GetContext(ctx, &doc, query, c.name, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return &doc, nil
}

// Query returns documents matching every filter.
func (c *Collection) Query(ctx context.Context, q Query) ([]Document, error) {
	where, args, err := buildWhere(c.name, q.Filters)
	if err != nil {
		return nil, err
	}

	var builder strings.Builder
	builder.WriteString("SELECT collection, id, data, created_at, updated_at FROM documents WHERE ")
	builder.WriteString(where)
	if q.OrderBy != "" {
		if !fieldNamePattern.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		builder.WriteString(fmt.Sprintf(" ORDER BY data->>'%s' %s, id ASC", q.OrderBy, direction))
	} else {
		builder.WriteString(" ORDER BY created_at ASC, id ASC")
	}
	if q.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if q.Offset > 0 {
		builder.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	var docs []Document
	if err := c.store.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	return docs, nil
}

// Count returns the number of documents matching every filter.
func (c *Collection) Count(ctx context.Context, filters ...Filter) (int, error) {
	where, args, err := buildWhere(c.name, filters)
	if err != nil {
		return 0, err
	}
	var total int
	if err := c.store.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return total, nil
}

// Create inserts a new document with the given id.
func (c *Collection) Create(ctx context.Context, id string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", c.name, id, err)
	}
	now := time.Now().UTC()
	const query = `INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := c.store.db.ExecContext(ctx, query, c.name, id, string(payload), now, now); err != nil {
		return fmt.Errorf("create %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Update shallow-merges patch into the stored document's top-level keys.
func (c *Collection) Update(ctx context.Context, id string, patch interface{}) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch %s/%s: %w", c.name, id, err)
	}
	const query = `UPDATE documents SET data = data || $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`
	result, err := c.store.db.ExecContext(ctx, query, c.name, id, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document. Deleting a missing id is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := c.store.db.ExecContext(ctx, query, c.name, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// BatchDelete removes up to BatchLimit documents in one statement.
func (c *Collection) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) > c.store.batchLimit {
		return 0, fmt.Errorf("%w: %d > %d", ErrBatchLimitExceeded, len(ids), c.store.batchLimit)
	}
	const query = `DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`
	result, err := c.store.db.ExecContext(ctx, query, c.name, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("batch delete %s: %w", c.name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("batch delete %s rows affected: %w", c.name, err)
	}
	return affected, nil
}

func buildWhere(collection string, filters []Filter) (string, []interface{}, error) {
	var builder strings.Builder
	args := []interface{}{collection}
	builder.WriteString("collection = $1")
	for _, f := range filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		op, ok := sqlOperators[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		lhs, arg := filterOperand(f.Field, f.Value)
		args = append(args, arg)
		builder.WriteString(fmt.Sprintf(" AND %s %s $%d", lhs, op, len(args)))
	}
	return builder.String(), args, nil
}

// filterOperand casts the JSON text so comparisons follow the value's type.
func filterOperand(field string, value interface{}) (string, interface{}) {
	text := fmt.Sprintf("data->>'%s'", field)
	switch v := value.(type) {
	case int, int32, int64, float32, float64:
		return "(" + text + ")::numeric", v
	case time.Time:
		return "(" + text + ")::timestamptz", v.UTC()
	case bool:
		return text, fmt.Sprintf("%t", v)
	case fmt.Stringer:
		return text, v.String()
	default:
		return text, fmt.Sprint(v)
	}
}
