// Package postgres implements the remote gateway directly against the
// backend's PostgreSQL schema.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/models"
)

const nodeColumns = `id, name, is_folder, parent_id, content, created_at, updated_at`

// Gateway is a PostgreSQL-backed gateway acting for one user.
type Gateway struct {
	db     *sql.DB
	userID string
}

// Open connects to databaseURL. userID is recorded as the voter.
func Open(databaseURL, userID string) (*Gateway, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, userID), nil
}

// New wraps an open database.
func New(db *sql.DB, userID string) *Gateway {
	return &Gateway{db: db, userID: userID}
}

// Close closes the database connection.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Migrate runs the *.up.sql files in dir in name order.
func (g *Gateway) Migrate(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := g.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (models.Node, error) {
	var (
		n        models.Node
		parentID sql.NullString
		content  sql.NullString
	)
	if err := row.Scan(&n.ID, &n.Name, &n.IsFolder, &parentID, &content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.Node{}, err
	}
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	if content.Valid {
		n.Content = &content.String
	}
	return n, nil
}

// ListNodes implements gateway.NodeGateway.
func (g *Gateway) ListNodes(ctx context.Context, parentID *string) ([]models.Node, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil || *parentID == "" {
		rows, err = g.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE parent_id IS NULL`)
	} else {
		rows, err = g.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE parent_id = $1`, *parentID)
	}
	if err != nil {
		return nil, mapError("list", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, mapError("list", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list", err)
	}
	return nodes, nil
}

// CreateNode implements gateway.NodeGateway.
func (g *Gateway) CreateNode(ctx context.Context, d models.CreateDetails) (models.Node, error) {
	if strings.TrimSpace(d.Name) == "" {
		return models.Node{}, gateway.Validation("create", "name must not be blank")
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Node{}, mapError("create", err)
	}
	defer tx.Rollback()

	var parent any
	if d.ParentID != nil && *d.ParentID != "" {
		var isFolder bool
		err := tx.QueryRowContext(ctx, `SELECT is_folder FROM nodes WHERE id = $1`, *d.ParentID).Scan(&isFolder)
		if err != nil {
			return models.Node{}, mapError("create", err)
		}
		if !isFolder {
			return models.Node{}, gateway.Validation("create", "parent is not a folder")
		}
		parent = *d.ParentID
	}

	var content any
	if !d.IsFolder {
		c := ""
		if d.Content != nil {
			c = *d.Content
		}
		content = c
	}

	n, err := scanNode(tx.QueryRowContext(ctx,
		`INSERT INTO nodes (name, is_folder, parent_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+nodeColumns,
		d.Name, d.IsFolder, parent, content))
	if err != nil {
		return models.Node{}, mapError("create", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Node{}, mapError("create", err)
	}
	return n, nil
}

// UpdateNode implements gateway.NodeGateway.
func (g *Gateway) UpdateNode(ctx context.Context, nodeID string, patch models.NodePatch) (models.Node, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Node{}, gateway.Validation("update", "name must not be blank")
	}
	n, err := scanNode(g.db.QueryRowContext(ctx,
		`UPDATE nodes SET name = COALESCE($2, name), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+nodeColumns,
		nodeID, patch.Name))
	if err != nil {
		return models.Node{}, mapError("update", err)
	}
	return n, nil
}

// DeleteNode implements gateway.NodeGateway. Descendants go with it.
func (g *Gateway) DeleteNode(ctx context.Context, nodeID string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, nodeID)
	if err != nil {
		return mapError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("delete", err)
	}
	if n == 0 {
		return gateway.NotFound("delete", "node "+nodeID+" does not exist")
	}
	return nil
}

// CastVote implements gateway.VoteGateway.
func (g *Gateway) CastVote(ctx context.Context, suggestionID string, value models.Vote) error {
	if !value.Valid() {
		return gateway.Validation("cast_vote", "vote must be -1, 0 or 1")
	}

	var err error
	if value == models.VoteNone {
		_, err = g.db.ExecContext(ctx,
			`DELETE FROM votes WHERE suggestion_id = $1 AND user_id = $2`, suggestionID, g.userID)
	} else {
		_, err = g.db.ExecContext(ctx,
			`INSERT INTO votes (suggestion_id, user_id, value) VALUES ($1, $2, $3)
			 ON CONFLICT (suggestion_id, user_id) DO UPDATE SET value = EXCLUDED.value`,
			suggestionID, g.userID, int(value))
	}
	if isForeignKeyViolation(err) {
		return gateway.NotFound("cast_vote", "suggestion "+suggestionID+" does not exist")
	}
	return mapError("cast_vote", err)
}

// ListSuggestions implements gateway.VoteGateway.
func (g *Gateway) ListSuggestions(ctx context.Context) ([]models.Suggestion, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT s.id, s.word, s.description, s.submitted_by, s.created_at, s.is_approved,
		        COALESCE(SUM(v.value), 0),
		        COALESCE(MAX(v.value) FILTER (WHERE v.user_id = $1), 0)
		 FROM suggestions s
		 LEFT JOIN votes v ON v.suggestion_id = s.id
		 GROUP BY s.id
		 ORDER BY s.created_at DESC`, g.userID)
	if err != nil {
		return nil, mapError("list_suggestions", err)
	}
	defer rows.Close()

	var out []models.Suggestion
	for rows.Next() {
		var s models.Suggestion
		var score, vote int
		if err := rows.Scan(&s.ID, &s.Word, &s.Description, &s.SubmittedBy, &s.CreatedAt, &s.IsApproved, &score, &vote); err != nil {
			return nil, mapError("list_suggestions", err)
		}
		s.Score = score
		s.UserVote = models.Vote(vote)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list_suggestions", err)
	}
	return out, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// mapError classifies a database error for op.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.NotFound(op, "no matching row")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return gateway.Validation(op, "name already exists")
		case pqErr.Code.Class() == "23", pqErr.Code.Class() == "22":
			return gateway.Validation(op, pqErr.Message)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return gateway.Network(op, err)
		}
		return &gateway.Error{Kind: gateway.KindUnknown, Op: op, Message: pqErr.Message, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return gateway.Network(op, err)
	}
	return &gateway.Error{Kind: gateway.KindUnknown, Op: op, Err: err}
}

var _ gateway.Gateway = (*Gateway)(nil)
