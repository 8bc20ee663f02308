/*
Package sqlstore provides an implementation of tree.ForestStore
that uses an SQL database as backend.

The store uses 2 database tables:
  * forests, with one row per forest holding its header
    (dimensionality, feature type, number of classes and
    the JSON array of root node ids of its trees)
  * nodes, with one row per node, keyed by forest id, tree
    index and node id

Differences between database engines (bind parameters, column
types and upserts) are handled by an Adapter.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AfafAlalwan/arch-forest/tree"
)

/*
Adapter is an interface providing the database handle
and the engine specific statements needed to implement
a ForestStore with a database backend.
*/
type Adapter interface {
	DB() *sql.DB
	// Placeholder returns the bind parameter for the
	// i-th argument of a statement, starting at 1
	Placeholder(i int) string
	// CreateTableStmts returns the statements that create
	// the forests and nodes tables if they do not exist
	CreateTableStmts() []string
	// UpsertForestStmt returns a statement that inserts or
	// replaces a row in forests taking the id, dim,
	// feature_type, num_classes and roots columns
	UpsertForestStmt() string
	// UpsertNodeStmt returns a statement that inserts or
	// replaces a row in nodes taking the NodeColumns
	UpsertNodeStmt() string
}

// NodeColumns are the columns of the nodes table in the order
// UpsertNodeStmt takes them
var NodeColumns = []string{"forest", "tree", "id", "leaf", "prediction", "feature", "threshold", "left_id", "right_id", "prob_left", "prob_right"}

type sqlStore struct {
	adapter Adapter
	forest  string
}

type nodeStore struct {
	*sqlStore
	tree int
}

/*
Open takes a context, an Adapter and the id of a forest and returns a
tree.ForestStore for that forest on the adapter's database, ensuring
its tables exist, or an error if they cannot be created. Closing the
store closes the adapter's database.
*/
func Open(ctx context.Context, a Adapter, forest string) (tree.ForestStore, error) {
	if forest == "" {
		return nil, fmt.Errorf("opening sql forest store: empty forest id")
	}
	for _, stmt := range a.CreateTableStmts() {
		_, err := a.DB().ExecContext(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("ensuring forest store tables exist: %v", err)
		}
	}
	return &sqlStore{a, forest}, nil
}

func (ss *sqlStore) Header(ctx context.Context) (*tree.Header, error) {
	query := fmt.Sprintf("SELECT dim, feature_type, num_classes, roots FROM forests WHERE id = %s", ss.adapter.Placeholder(1))
	h := &tree.Header{}
	var roots string
	err := ss.adapter.DB().QueryRowContext(ctx, query, ss.forest).Scan(&h.Dim, &h.FeatureType, &h.NumClasses, &roots)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving header of forest %s: %v", ss.forest, err)
	}
	err = json.Unmarshal([]byte(roots), &h.Roots)
	if err != nil {
		return nil, fmt.Errorf("retrieving header of forest %s: decoding roots %q: %v", ss.forest, roots, err)
	}
	return h, nil
}

func (ss *sqlStore) SetHeader(ctx context.Context, h *tree.Header) error {
	roots, err := json.Marshal(h.Roots)
	if err != nil {
		return fmt.Errorf("storing header of forest %s: encoding roots: %v", ss.forest, err)
	}
	_, err = ss.adapter.DB().ExecContext(ctx, ss.adapter.UpsertForestStmt(), ss.forest, h.Dim, h.FeatureType, h.NumClasses, string(roots))
	if err != nil {
		return fmt.Errorf("storing header of forest %s: %v", ss.forest, err)
	}
	return nil
}

func (ss *sqlStore) Nodes(t int) tree.NodeStore {
	return &nodeStore{ss, t}
}

func (ss *sqlStore) Close(ctx context.Context) error {
	return ss.adapter.DB().Close()
}

func (ns *nodeStore) Get(ctx context.Context, id tree.NodeID) (*tree.Node, error) {
	query := fmt.Sprintf(
		"SELECT leaf, prediction, feature, threshold, left_id, right_id, prob_left, prob_right FROM nodes WHERE %s",
		ns.where(),
	)
	var (
		leaf                                bool
		prediction, threshold, probL, probR sql.NullFloat64
		feature, left, right                sql.NullInt64
	)
	err := ns.adapter.DB().QueryRowContext(ctx, query, ns.forest, ns.tree, int64(id)).
		Scan(&leaf, &prediction, &feature, &threshold, &left, &right, &probL, &probR)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: %v", id, err)
	}
	r := &tree.RawNode{ID: id, Leaf: leaf}
	if prediction.Valid {
		r.Prediction = &prediction.Float64
	}
	if feature.Valid {
		f := int(feature.Int64)
		r.Feature = &f
	}
	if threshold.Valid {
		r.Threshold = &threshold.Float64
	}
	if left.Valid {
		l := tree.NodeID(left.Int64)
		r.Left = &l
	}
	if right.Valid {
		rt := tree.NodeID(right.Int64)
		r.Right = &rt
	}
	if probL.Valid {
		r.ProbLeft = &probL.Float64
	}
	if probR.Valid {
		r.ProbRight = &probR.Float64
	}
	n, err := r.Node()
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: %w", id, err)
	}
	return n, nil
}

func (ns *nodeStore) Store(ctx context.Context, n *tree.Node) error {
	args := []interface{}{ns.forest, ns.tree, int64(n.ID()), n.IsLeaf()}
	if n.IsLeaf() {
		args = append(args, n.Prediction(), nil, nil, nil, nil, nil, nil)
	} else {
		args = append(args, nil, n.Feature(), n.Threshold(), int64(n.Left()), int64(n.Right()), n.ProbLeft(), n.ProbRight())
	}
	_, err := ns.adapter.DB().ExecContext(ctx, ns.adapter.UpsertNodeStmt(), args...)
	if err != nil {
		return fmt.Errorf("storing node %d: %v", n.ID(), err)
	}
	return nil
}

func (ns *nodeStore) Delete(ctx context.Context, id tree.NodeID) error {
	_, err := ns.adapter.DB().ExecContext(ctx, "DELETE FROM nodes WHERE "+ns.where(), ns.forest, ns.tree, int64(id))
	if err != nil {
		return fmt.Errorf("deleting node %d: %v", id, err)
	}
	return nil
}

func (ns *nodeStore) Close(ctx context.Context) error {
	return nil
}

func (ns *nodeStore) where() string {
	p := ns.adapter.Placeholder
	return fmt.Sprintf("forest = %s AND tree = %s AND id = %s", p(1), p(2), p(3))
}
