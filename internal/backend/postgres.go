package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drumkits/internal/kit"
)

// Postgres reads the catalog table directly. Query semantics match REST.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgres(pool *pgxpool.Pool, table string) *Postgres {
	if table == "" {
		table = "drum_kits"
	}
	return &Postgres{pool: pool, table: table}
}

// SQL returns the statement and arguments for q.
func (s *Postgres) SQL(q Query) (string, []any) {
	q = q.Normalize()
	cols := "id::text, slug, title, description, file_size, update_date::text"
	if q.Columns() == detailColumns {
		cols += ", download"
	}
	var (
		where []string
		args  []any
	)
	if q.Slug != "" {
		args = append(args, q.Slug)
		where = append(where, fmt.Sprintf("slug = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+EscapePattern(q.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\' OR slug ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, pgx.Identifier{s.table}.Sanitize())
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY id DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return b.String(), args
}

func (s *Postgres) List(ctx context.Context, q Query) ([]kit.Row, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	detail := q.Normalize().Columns() == detailColumns
	stmt, args := s.SQL(q)
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query kits: %w", err)
	}
	defer rows.Close()

	out := []kit.Row{}
	for rows.Next() {
		var (
			id  string
			row kit.Row
		)
		dest := []any{&id, &row.Slug, &row.Title, &row.Description, &row.FileSize, &row.UpdateDate}
		if detail {
			dest = append(dest, &row.Download)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		row.ID = kit.ID(id)
		out = append(out, row)
	}
	return out, rows.Err()
}
