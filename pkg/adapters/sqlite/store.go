// Package sqlite stores graphs in a SQLite database, one row per node, link
// and group, so authored content can be queried with plain SQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	_ "modernc.org/sqlite"
)

// GraphStore implements ports.GraphStore on SQLite.
type GraphStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*GraphStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes; one connection also keeps
	// an in-memory database alive.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &GraphStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *GraphStore) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS graphs (
			name TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nodes (
			graph TEXT NOT NULL,
			ord INTEGER NOT NULL,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			properties TEXT NOT NULL,
			PRIMARY KEY (graph, id)
		);

		CREATE TABLE IF NOT EXISTS links (
			graph TEXT NOT NULL,
			ord INTEGER NOT NULL,
			from_id TEXT NOT NULL,
			port_index INTEGER NOT NULL,
			port_name TEXT NOT NULL,
			to_id TEXT NOT NULL,
			PRIMARY KEY (graph, ord)
		);

		CREATE TABLE IF NOT EXISTS groups_ (
			graph TEXT NOT NULL,
			ord INTEGER NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			members TEXT NOT NULL,
			PRIMARY KEY (graph, id)
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(graph, type);
		CREATE INDEX IF NOT EXISTS idx_links_to ON links(graph, to_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Save replaces the graph stored under name in one transaction.
func (s *GraphStore) Save(ctx context.Context, name string, g *domain.Graph) error {
	doc, err := codec.Encode(g)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteRows(ctx, tx, name); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO graphs (name, version, updated_at) VALUES (?, ?, ?)`,
		name, doc.Version, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting graph: %w", err)
	}

	for i, n := range doc.Nodes {
		props, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("encoding properties of %s: %w", n.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO nodes (graph, ord, id, type, x, y, properties) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			name, i, n.ID, string(n.Type), n.Position.X, n.Position.Y, string(props))
		if err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	for i, l := range doc.Links {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO links (graph, ord, from_id, port_index, port_name, to_id) VALUES (?, ?, ?, ?, ?, ?)`,
			name, i, l.From, l.PortIndex, l.PortName, l.To)
		if err != nil {
			return fmt.Errorf("inserting link %s: %w", l, err)
		}
	}

	for i, grp := range doc.Groups {
		members, err := json.Marshal(grp.Nodes)
		if err != nil {
			return fmt.Errorf("encoding group %s: %w", grp.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO groups_ (graph, ord, id, title, members) VALUES (?, ?, ?, ?, ?)`,
			name, i, grp.ID, grp.Title, string(members))
		if err != nil {
			return fmt.Errorf("inserting group %s: %w", grp.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func deleteRows(ctx context.Context, tx *sql.Tx, name string) error {
	for _, table := range []string{"nodes", "links", "groups_", "graphs"} {
		col := "graph"
		if table == "graphs" {
			col = "name"
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+col+` = ?`, name); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Load rebuilds a graph from its rows.
func (s *GraphStore) Load(ctx context.Context, name string) (*domain.Graph, error) {
	doc := &codec.Document{}
	err := s.db.QueryRowContext(ctx, `SELECT version FROM graphs WHERE name = ?`, name).Scan(&doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying graph: %w", err)
	}

	if doc.Nodes, err = s.loadNodes(ctx, name); err != nil {
		return nil, err
	}
	if doc.Links, err = s.loadLinks(ctx, name); err != nil {
		return nil, err
	}
	if doc.Groups, err = s.loadGroups(ctx, name); err != nil {
		return nil, err
	}
	return codec.Decode(doc)
}

func (s *GraphStore) loadNodes(ctx context.Context, name string) ([]codec.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, x, y, properties FROM nodes WHERE graph = ? ORDER BY ord`, name)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var out []codec.NodeRecord
	for rows.Next() {
		var rec codec.NodeRecord
		var kind, props string
		if err := rows.Scan(&rec.ID, &kind, &rec.Position.X, &rec.Position.Y, &props); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		rec.Type = domain.NodeKind(kind)
		if err := json.Unmarshal([]byte(props), &rec.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *GraphStore) loadLinks(ctx context.Context, name string) ([]domain.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, port_index, port_name, to_id FROM links WHERE graph = ? ORDER BY ord`, name)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var out []domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.From, &l.PortIndex, &l.PortName, &l.To); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *GraphStore) loadGroups(ctx context.Context, name string) ([]domain.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, members FROM groups_ WHERE graph = ? ORDER BY ord`, name)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var out []domain.Group
	for rows.Next() {
		var grp domain.Group
		var members string
		if err := rows.Scan(&grp.ID, &grp.Title, &members); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &grp.Nodes); err != nil {
			return nil, fmt.Errorf("decoding group %s: %w", grp.ID, err)
		}
		out = append(out, grp)
	}
	return out, rows.Err()
}

// Delete removes a graph and its rows.
func (s *GraphStore) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteRows(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns the stored graph names, sorted.
func (s *GraphStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM graphs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying graphs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning graph name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// KindCount is the number of nodes of one kind in a graph.
type KindCount struct {
	Kind  domain.NodeKind
	Count int
}

// CountKinds reports how many nodes of each kind a stored graph holds,
// straight from the node table.
func (s *GraphStore) CountKinds(ctx context.Context, name string) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM nodes WHERE graph = ? GROUP BY type ORDER BY type`, name)
	if err != nil {
		return nil, fmt.Errorf("counting kinds: %w", err)
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		var kind string
		if err := rows.Scan(&kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("scanning kind count: %w", err)
		}
		kc.Kind = domain.NodeKind(kind)
		out = append(out, kc)
	}
	return out, rows.Err()
}
