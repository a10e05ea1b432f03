package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// IDField is the reserved document key holding the document id.
const IDField = "_id"

// Document is a schema-less JSON object.
type Document map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Float returns the field as a float64 when it holds a JSON number.
func (d Document) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Filter is an exact-match filter on top-level string fields. An empty
// filter matches every document of the collection.
type Filter map[string]string

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Collection struct {
	db   *DB
	name string
}

func (c *Collection) Name() string {
	return c.name
}

// InsertOne stores doc under a freshly generated id and returns that id.
// Any "_id" already present in doc is ignored.
func (c *Collection) InsertOne(ctx context.Context, doc Document) (string, error) {
	body := make(Document, len(doc))
	for k, v := range doc {
		if k != IDField {
			body[k] = v
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	d := c.db.dialect
	query := fmt.Sprintf("INSERT INTO documents (collection, id, body) VALUES (%s, %s, %s)",
		d.bind(1), d.bind(2), d.bind(3))

	if _, err := c.db.ExecContext(ctx, query, c.name, id, string(data)); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", c.name, translateError(err))
	}
	return id, nil
}

// FindOne returns the first document matching filter, or ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT id, body FROM documents WHERE " + where + " ORDER BY seq LIMIT 1"
	var id, body string
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&id, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	return decode(id, body)
}

// Find returns every document matching filter in insertion order.
func (c *Collection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT id, body FROM documents WHERE " + where + " ORDER BY seq"
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c.name, err)
		}
		doc, err := decode(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c.name, err)
	}
	return docs, nil
}

// DeleteMany removes every document matching filter and reports how many
// were removed.
func (c *Collection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

func (c *Collection) where(filter Filter) (string, []any, error) {
	d := c.db.dialect

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !fieldName.MatchString(k) {
			return "", nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := []string{"collection = " + d.bind(1)}
	args := []any{c.name}
	for _, k := range keys {
		expr := d.field(k)
		if k == IDField {
			expr = "id"
		}
		args = append(args, filter[k])
		clauses = append(clauses, expr+" = "+d.bind(len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func decode(id, body string) (Document, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	doc := Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc[IDField] = id
	return doc, nil
}
