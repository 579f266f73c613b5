package link

import (
	"context"
	"fmt"
	"io"

	"github.com/ipld/go-car/v2"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/ipld/go-ipld-prime/traversal/selector"
	"github.com/ipld/go-ipld-prime/traversal/selector/builder"
)

// Export writes a CAR containing the entry with the given version and all of its ancestors.
func (s *Store) Export(ctx context.Context, version string, out io.Writer) (int64, error) {
	lnk, err := Parse(version)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", version, err)
	}
	// every link in an entry points to a parent version so exploring all edges walks the history
	ssb := builder.NewSelectorSpecBuilder(basicnode.Prototype.Any)
	sel := ssb.ExploreRecursive(selector.RecursionLimitNone(), ssb.ExploreAll(ssb.ExploreRecursiveEdge()))

	w, err := car.NewSelectiveWriter(ctx, &s.lsys, lnk.(cidlink.Link).Cid, sel.Node())
	if err != nil {
		return 0, err
	}
	return w.WriteTo(out)
}
