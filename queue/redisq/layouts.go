package redisq

import (
	"context"
	"fmt"
	"time"

	redis "gopkg.in/redis.v5"

	"github.com/AfafAlalwan/arch-forest/codegen"
)

// LayoutStore keeps the layouts of the trees of a queue's tasks on
// redis, for the workers of other processes to hand them over.
type LayoutStore struct {
	id  string
	rc  *redis.Client
	ttl time.Duration
}

/*
NewLayoutStore returns a LayoutStore on the given redis client for the
queue with the given id. Layouts are kept at id:layout:tree_index
encoded with codegen.MarshalBody, and expire after ttl unless it is
zero.
*/
func NewLayoutStore(id string, rc *redis.Client, ttl time.Duration) *LayoutStore {
	return &LayoutStore{id: id, rc: rc, ttl: ttl}
}

// PutLayout stores the layout under the index of its tree
func (ls *LayoutStore) PutLayout(ctx context.Context, b *codegen.Body) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := codegen.MarshalBody(b)
	if err != nil {
		return err
	}
	_, err = ls.rc.Set(ls.layoutKey(b.Tree), data, ls.ttl).Result()
	if err != nil {
		return fmt.Errorf("storing layout of tree %d on redis: %v", b.Tree, err)
	}
	return nil
}

// Layout returns the layout of the tree with the given index, or nil
// and no error if none is stored.
func (ls *LayoutStore) Layout(ctx context.Context, tree int) (*codegen.Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := ls.rc.Get(ls.layoutKey(tree)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving layout of tree %d from redis: %v", tree, err)
	}
	return codegen.UnmarshalBody(data)
}

func (ls *LayoutStore) layoutKey(tree int) string {
	return fmt.Sprintf("%s:layout:%d", ls.id, tree)
}
