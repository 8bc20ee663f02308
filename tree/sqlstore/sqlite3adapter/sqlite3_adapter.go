/*
Package sqlite3adapter provides an implementation of the
Adapter interface in the sqlstore package that works
over an SQLite3 database file.
*/
package sqlite3adapter

import (
	"database/sql"

	// Import of sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

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
		id INTEGER NOT NULL,
		leaf BOOLEAN NOT NULL,
		prediction REAL NULL,
		feature INTEGER NULL,
		threshold REAL NULL,
		left_id INTEGER NULL,
		right_id INTEGER NULL,
		prob_left REAL NULL,
		prob_right REAL NULL,
		PRIMARY KEY (forest, tree, id))`
	forestUpsertStmt = `INSERT OR REPLACE INTO forests (id, dim, feature_type, num_classes, roots) VALUES (?, ?, ?, ?, ?)`
	nodeUpsertStmt   = `INSERT OR REPLACE INTO nodes (forest, tree, id, leaf, prediction, feature, threshold, left_id, right_id, prob_left, prob_right) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

type adapter struct {
	db *sql.DB
}

/*
New takes a path to an SQLite3 database file and the maximum number
of connections to open on it (0 means no limit) and returns an Adapter
that works on the file's database or an error if it fails to open as
an sqlite3 database.
*/
func New(path string, maxConns int) (sqlstore.Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	return &adapter{db}, nil
}

// FromDB returns an Adapter with SQLite3 statements working on the given database
func FromDB(db *sql.DB) sqlstore.Adapter {
	return &adapter{db}
}

func (a *adapter) DB() *sql.DB {
	return a.db
}

func (a *adapter) Placeholder(int) string {
	return "?"
}

func (a *adapter) CreateTableStmts() []string {
	return []string{forestsTableCreateStmt, nodesTableCreateStmt}
}

func (a *adapter) UpsertForestStmt() string {
	return forestUpsertStmt
}

func (a *adapter) UpsertNodeStmt() string {
	return nodeUpsertStmt
}
