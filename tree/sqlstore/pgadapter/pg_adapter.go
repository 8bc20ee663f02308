/*
Package pgadapter provides an implementation of the
Adapter interface in the sqlstore package that works
over a PostgreSQL database.
*/
package pgadapter

import (
	"database/sql"
	"fmt"
	"strings"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/AfafAlalwan/arch-forest/tree/sqlstore"
)

const (
	forestsTableCreateStmt = `CREATE TABLE IF NOT EXISTS forests (
		id TEXT PRIMARY KEY,
		dim INTEGER NOT NULL,
		feature_type TEXT NOT NULL,
		num_classes INTEGER NOT NULL,
		roots TEXT NOT NULL)`
	nodesTableCreateStmt = `CREATE TABLE IF NOT EXISTS nodes (
		forest TEXT NOT NULL,
		tree INTEGER NOT NULL,
		id BIGINT NOT NULL,
		leaf BOOLEAN NOT NULL,
		prediction DOUBLE PRECISION NULL,
		feature INTEGER NULL,
		threshold DOUBLE PRECISION NULL,
		left_id BIGINT NULL,
		right_id BIGINT NULL,
		prob_left DOUBLE PRECISION NULL,
		prob_right DOUBLE PRECISION NULL,
		PRIMARY KEY (forest, tree, id))`
	forestUpsertStmt = `INSERT INTO forests (id, dim, feature_type, num_classes, roots) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET dim = EXCLUDED.dim, feature_type = EXCLUDED.feature_type, num_classes = EXCLUDED.num_classes, roots = EXCLUDED.roots`
)

type adapter struct {
	db *sql.DB
}

/*
New takes a PostgreSQL database connection URL and the maximum number
of connections to open on it (0 means no limit) and returns an Adapter
that works on the database or an error if it fails to connect to it.
*/
func New(url string, maxConns int) (sqlstore.Adapter, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	return &adapter{db}, nil
}

// FromDB returns an Adapter with PostgreSQL statements working on the given database
func FromDB(db *sql.DB) sqlstore.Adapter {
	return &adapter{db}
}

func (a *adapter) DB() *sql.DB {
	return a.db
}

func (a *adapter) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (a *adapter) CreateTableStmts() []string {
	return []string{forestsTableCreateStmt, nodesTableCreateStmt}
}

func (a *adapter) UpsertForestStmt() string {
	return forestUpsertStmt
}

func (a *adapter) UpsertNodeStmt() string {
	columns := sqlstore.NodeColumns
	params := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, c := range columns {
		params[i] = a.Placeholder(i + 1)
		if i > 2 {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO nodes (%s) VALUES (%s) ON CONFLICT (forest, tree, id) DO UPDATE SET %s",
		strings.Join(columns, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}
