/*
Package redisstore implements a tree.ForestStore backed by a redis DB.

Every value lives under a common prefix: the forest header is kept as JSON
at <prefix>:header and each node at <prefix>:<tree>:<node>, encoded with
the given tree.NodeEncodeDecoder.
*/
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/redis.v5"

	"github.com/AfafAlalwan/arch-forest/tree"
)

type redisStore struct {
	rc      *redis.Client
	prefix  string
	nencdec tree.NodeEncodeDecoder
}

type nodeStore struct {
	*redisStore
	tree int
}

// New builds a tree.ForestStore backed by a redis DB that keeps
// all its keys under the given prefix
func New(rc *redis.Client, prefix string, nencdec tree.NodeEncodeDecoder) tree.ForestStore {
	return &redisStore{rc, prefix, nencdec}
}

func (rs *redisStore) Header(ctx context.Context) (*tree.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := rs.rc.Get(rs.headerKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving forest header from redis: %v", err)
	}
	h := &tree.Header{}
	err = json.Unmarshal(data, h)
	if err != nil {
		return nil, fmt.Errorf("retrieving forest header: decoding %q: %v", data, err)
	}
	return h, nil
}

func (rs *redisStore) SetHeader(ctx context.Context, h *tree.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("storing forest header: encoding header: %v", err)
	}
	_, err = rs.rc.Set(rs.headerKey(), data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing forest header in redis: %v", err)
	}
	return nil
}

func (rs *redisStore) Nodes(t int) tree.NodeStore {
	return &nodeStore{rs, t}
}

func (rs *redisStore) Close(ctx context.Context) error {
	return nil
}

func (rs *redisStore) headerKey() string {
	return fmt.Sprintf("%s:header", rs.prefix)
}

func (ns *nodeStore) Get(ctx context.Context, id tree.NodeID) (*tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := ns.rc.Get(ns.keyFor(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: %v", id, err)
	}
	n, err := ns.nencdec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: decoding %q: %v", id, data, err)
	}
	return n, nil
}

func (ns *nodeStore) Store(ctx context.Context, n *tree.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	redisID := ns.keyFor(n.ID())
	data, err := ns.nencdec.Encode(n)
	if err != nil {
		return fmt.Errorf("storing node %q: encoding node: %v", redisID, err)
	}
	_, err = ns.rc.Set(redisID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing node %q in redis: %v", redisID, err)
	}
	return nil
}

func (ns *nodeStore) Delete(ctx context.Context, id tree.NodeID) error {
	redisID := ns.keyFor(id)
	_, err := ns.rc.Del(redisID).Result()
	if err != nil {
		return fmt.Errorf("deleting node %q from redis: %v", redisID, err)
	}
	return nil
}

func (ns *nodeStore) Close(ctx context.Context) error {
	return nil
}

func (ns *nodeStore) keyFor(id tree.NodeID) string {
	return fmt.Sprintf("%s:%d:%d", ns.prefix, ns.tree, id)
}
