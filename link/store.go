package link

import (
	"context"

	"github.com/nasdf/osmdag/storage"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"

	// codecs need to be initialized and registered
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
	_ "github.com/ipld/go-ipld-prime/codec/dagjson"
)

var linkPrototype = cidlink.LinkPrototype{Prefix: cid.Prefix{
	Version:  1,    // Usually '1'.
	Codec:    0x71, // dag-cbor -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhType:   0x13, // sha2-512 -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhLength: 64,   // sha2-512 hash has a 64-byte sum.
}}

// Store is a content addressable data store.
type Store struct {
	lsys linking.LinkSystem
}

// NewStore returns a new Store that uses the given block storage to read and write content addressable data.
func NewStore(blocks *storage.Blocks) *Store {
	lsys := cidlink.DefaultLinkSystem()
	lsys.SetReadStorage(blocks)
	lsys.SetWriteStorage(blocks)

	return &Store{
		lsys: lsys,
	}
}

// Load returns the node matching the given link and built using the given prototype.
func (s *Store) Load(ctx context.Context, lnk datamodel.Link, np datamodel.NodePrototype) (datamodel.Node, error) {
	return s.lsys.Load(linking.LinkContext{Ctx: ctx}, lnk, np)
}

// Store writes the given node to the store and returns its link.
func (s *Store) Store(ctx context.Context, node datamodel.Node) (datamodel.Link, error) {
	return s.lsys.Store(linking.LinkContext{Ctx: ctx}, linkPrototype, node)
}

// ComputeLink returns the link the given node would be stored under without writing it.
func (s *Store) ComputeLink(node datamodel.Node) (datamodel.Link, error) {
	return s.lsys.ComputeLink(linkPrototype, node)
}

// Parse returns the link encoded in the given string.
func Parse(s string) (datamodel.Link, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return nil, err
	}
	return cidlink.Link{Cid: id}, nil
}
