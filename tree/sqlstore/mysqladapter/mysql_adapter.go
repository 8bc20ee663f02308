/*
Package mysqladapter provides an implementation of the
Adapter interface in the sqlstore package that works
over a MySQL database.
*/
package mysqladapter

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/AfafAlalwan/arch-forest/tree/sqlstore"
)

const (
	forestsTableCreateStmt = `CREATE TABLE IF NOT EXISTS forests (
		id VARCHAR(64) PRIMARY KEY,
		dim INTEGER NOT NULL,
		feature_type VARCHAR(32) NOT NULL,
		num_classes INTEGER NOT NULL,
		roots LONGTEXT NOT NULL)`
	nodesTableCreateStmt = `CREATE TABLE IF NOT EXISTS nodes (
		forest VARCHAR(64) NOT NULL,
		tree INTEGER NOT NULL,
		id BIGINT NOT NULL,
		leaf BOOLEAN NOT NULL,
		prediction DOUBLE NULL,
		feature INTEGER NULL,
		threshold DOUBLE NULL,
		left_id BIGINT NULL,
		right_id BIGINT NULL,
		prob_left DOUBLE NULL,
		prob_right DOUBLE NULL,
		PRIMARY KEY (forest, tree, id))`
	forestUpsertStmt = `INSERT INTO forests (id, dim, feature_type, num_classes, roots) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE dim = VALUES(dim), feature_type = VALUES(feature_type), num_classes = VALUES(num_classes), roots = VALUES(roots)`
)

type adapter struct {
	db *sql.DB
}

/*
New takes a MySQL data source name (user:password@tcp(host:port)/dbname)
and the maximum number of connections to open on it (0 means no limit)
and returns an Adapter that works on the database or an error if the
data source name is invalid.
*/
func New(dsn string, maxConns int) (sqlstore.Adapter, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql data source name: %v", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxConns)
	return &adapter{db}, nil
}

// FromDB returns an Adapter with MySQL statements working on the given database
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
	columns := sqlstore.NodeColumns
	params := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, c := range columns {
		params[i] = "?"
		if i > 2 {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO nodes (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		strings.Join(columns, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}
