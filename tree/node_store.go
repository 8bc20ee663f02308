package tree

import (
	"context"
	"fmt"
	"sync"
)

/*
NodeStore is an interface to manage a store
where the nodes of a tree can be stored, retrieved
and deleted.

All it methods take a context that may allow
cancelling the operation (thus forcing the return
of an error) if the implementation allows it.
*/
type NodeStore interface {
	// Get takes an id and returns the node in the
	// store with that id (or nil if it cannot be
	// found) or an error if the store cannot be
	// queried
	Get(ctx context.Context, id NodeID) (*Node, error)
	// Store takes a node and stores it, replacing
	// any node with the same ID. It returns an error
	// if the node cannot be stored.
	Store(ctx context.Context, n *Node) error
	// Delete takes the id of a node and deletes it from
	// the store. Deleting a missing node is not an error.
	Delete(ctx context.Context, id NodeID) error
	// Close closes the store, implementations should
	// freeing any resources in use as well as ensure
	// any pending changes are applied before returning
	// (unless the context expires). It returns an error
	// if the Close cannot be completed (because of the
	// context or another error)
	Close(ctx context.Context) error
}

/*
NodeEncodeDecoder is an interface for objects
that allow encoding nodes into slices of
bytes and decoding them back to nodes, used by
the stores that keep nodes as opaque values.
*/
type NodeEncodeDecoder interface {

	//Encode receives a *Node
	// and returns a slice of bytes with the node
	//encoded or an error if the encoding could not
	//be performed for some reason.
	Encode(*Node) ([]byte, error)

	//Decode receives a slice of bytes
	//and returns a *Node decoded from the
	//slice of bytes or an error if the decoding
	//could not be performed for some reason.
	Decode([]byte) (*Node, error)
}

type memoryNodeStore struct {
	nodes map[NodeID]*Node
	lock  *sync.RWMutex
}

// NewMemoryNodeStore returns an implementation
// of NodeStore with the process memory space
// as underlying backend
func NewMemoryNodeStore() NodeStore {
	return &memoryNodeStore{
		nodes: make(map[NodeID]*Node),
		lock:  &sync.RWMutex{},
	}
}

func (mns *memoryNodeStore) Store(ctx context.Context, n *Node) error {
	return mns.withLock(ctx, func(ctx context.Context) error {
		mns.nodes[n.id] = n
		return nil
	})
}

func (mns *memoryNodeStore) Get(ctx context.Context, id NodeID) (*Node, error) {
	var n *Node
	err := mns.withRLock(ctx, func(ctx context.Context) error {
		n = mns.nodes[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (mns *memoryNodeStore) Delete(ctx context.Context, id NodeID) error {
	return mns.withLock(ctx, func(ctx context.Context) error {
		delete(mns.nodes, id)
		return nil
	})
}

func (mns *memoryNodeStore) Close(ctx context.Context) error {
	return nil
}

func (mns *memoryNodeStore) withLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mns.lock.Lock()
		select {
		case <-ctx.Done():
			mns.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mns.lock.Unlock()
	}
	return f(ctx)
}

func (mns *memoryNodeStore) withRLock(ctx context.Context, f func(ctx context.Context) error) error {
	gotLock := make(chan struct{})
	go func() {
		mns.lock.RLock()
		select {
		case <-ctx.Done():
			mns.lock.RUnlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer mns.lock.RUnlock()
	}
	return f(ctx)
}

// Load takes a context, a NodeStore and the ID of a root node and
// returns the tree formed by the nodes reachable from the root in
// the store, in depth-first order. Nodes in the store that are not
// reachable from the root are ignored. An error is returned if the
// store fails, the context expires or a referenced node is missing.
func Load(ctx context.Context, ns NodeStore, rootID NodeID) (*Tree, error) {
	var nodes []*Node
	pending := []NodeID{rootID}
	parent := map[NodeID]NodeID{}
	visited := map[NodeID]bool{}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if visited[id] {
			return nil, &Error{Node: id, Message: "reached twice from the root", Err: ErrSharedChild}
		}
		visited[id] = true
		n, err := ns.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading tree: retrieving node %d: %w", id, err)
		}
		if n == nil {
			if id == rootID {
				return nil, &Error{Node: id, Message: "root node not found", Err: ErrMissingRoot}
			}
			return nil, &Error{Node: parent[id], Message: fmt.Sprintf("child %d not found", id), Err: ErrMissingChild}
		}
		nodes = append(nodes, n)
		if !n.leaf {
			parent[n.left], parent[n.right] = id, id
			pending = append(pending, n.right, n.left)
		}
	}
	return New(rootID, nodes)
}

// Save takes a context, a NodeStore and a tree and stores
// every node of the tree in the store.
func Save(ctx context.Context, ns NodeStore, t *Tree) error {
	for _, id := range t.ids {
		err := ns.Store(ctx, t.nodes[id])
		if err != nil {
			return fmt.Errorf("saving tree: storing node %d: %w", id, err)
		}
	}
	return nil
}
