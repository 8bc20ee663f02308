package codegen

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/AfafAlalwan/arch-forest/tree"
)

const (
	ifKind     = "if"
	returnKind = "return"
	gotoKind   = "goto"
)

type stmtDoc struct {
	Kind      string      `msgpack:"kind"`
	Node      tree.NodeID `msgpack:"node,omitempty"`
	Feature   int         `msgpack:"feature,omitempty"`
	Op        Op          `msgpack:"op,omitempty"`
	Threshold float64     `msgpack:"threshold,omitempty"`
	Then      *stmtDoc    `msgpack:"then,omitempty"`
	Else      *stmtDoc    `msgpack:"else,omitempty"`
	Value     float64     `msgpack:"value,omitempty"`
	Label     int         `msgpack:"label,omitempty"`
}

type bodyDoc struct {
	Tree        int        `msgpack:"tree"`
	Entry       *stmtDoc   `msgpack:"entry"`
	Blocks      []*stmtDoc `msgpack:"blocks"`
	FloatSplits bool       `msgpack:"floatSplits"`
	Stats       Stats      `msgpack:"stats"`
}

/*
MarshalBody takes the layout of a tree and returns it encoded as
MessagePack, so it can be handed over to another process. Its
counterpart is UnmarshalBody.
*/
func MarshalBody(b *Body) ([]byte, error) {
	doc := &bodyDoc{Tree: b.Tree, FloatSplits: b.FloatSplits, Stats: b.Stats}
	var err error
	doc.Entry, err = stmtToDoc(b.Entry)
	if err != nil {
		return nil, fmt.Errorf("encoding layout of tree %d: %v", b.Tree, err)
	}
	for _, blk := range b.Blocks {
		sd, err := stmtToDoc(blk.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding layout of tree %d: block %s: %v", b.Tree, blk.Label, err)
		}
		doc.Blocks = append(doc.Blocks, sd)
	}
	return msgpack.Marshal(doc)
}

// UnmarshalBody takes a layout encoded with MarshalBody and returns it,
// or an error if it cannot be decoded or its labels do not check.
func UnmarshalBody(data []byte) (*Body, error) {
	doc := &bodyDoc{}
	if err := msgpack.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decoding layout: %v", err)
	}
	b := &Body{Tree: doc.Tree, FloatSplits: doc.FloatSplits, Stats: doc.Stats}
	var err error
	b.Entry, err = doc.Entry.stmt(b.Tree)
	if err != nil {
		return nil, fmt.Errorf("decoding layout of tree %d: %v", b.Tree, err)
	}
	for i, sd := range doc.Blocks {
		s, err := sd.stmt(b.Tree)
		if err != nil {
			return nil, fmt.Errorf("decoding layout of tree %d: block %d: %v", b.Tree, i, err)
		}
		b.Blocks = append(b.Blocks, &Block{Label: Label{Tree: b.Tree, Index: i}, Body: s})
	}
	if err = b.Check(); err != nil {
		return nil, fmt.Errorf("decoding layout of tree %d: %v", b.Tree, err)
	}
	return b, nil
}

func stmtToDoc(s Stmt) (*stmtDoc, error) {
	switch s := s.(type) {
	case *If:
		then, err := stmtToDoc(s.Then)
		if err != nil {
			return nil, err
		}
		els, err := stmtToDoc(s.Else)
		if err != nil {
			return nil, err
		}
		return &stmtDoc{Kind: ifKind, Node: s.Node, Feature: s.Feature, Op: s.Op, Threshold: s.Threshold, Then: then, Else: els}, nil
	case *Return:
		return &stmtDoc{Kind: returnKind, Node: s.Node, Value: s.Value}, nil
	case *Goto:
		return &stmtDoc{Kind: gotoKind, Label: s.Label.Index}, nil
	}
	return nil, fmt.Errorf("unexpected statement %T", s)
}

func (sd *stmtDoc) stmt(treeIndex int) (Stmt, error) {
	if sd == nil {
		return nil, fmt.Errorf("missing statement")
	}
	switch sd.Kind {
	case ifKind:
		then, err := sd.Then.stmt(treeIndex)
		if err != nil {
			return nil, err
		}
		els, err := sd.Else.stmt(treeIndex)
		if err != nil {
			return nil, err
		}
		return &If{Node: sd.Node, Feature: sd.Feature, Op: sd.Op, Threshold: sd.Threshold, Then: then, Else: els}, nil
	case returnKind:
		return &Return{Node: sd.Node, Value: sd.Value}, nil
	case gotoKind:
		return &Goto{Label: Label{Tree: treeIndex, Index: sd.Label}}, nil
	}
	return nil, fmt.Errorf("unknown statement kind %q", sd.Kind)
}
