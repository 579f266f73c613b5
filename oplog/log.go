// Package oplog implements an append-only, content addressed log.
//
// Every entry is an IPLD node containing a value and links to the entries it
// supersedes. The CID of an entry is its version. Entries are also assigned a
// local sequence number in append order, which is what index maintainers use to
// consume the log.
package oplog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nasdf/osmdag/link"
	"github.com/nasdf/osmdag/storage"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrNotFound = errors.New("entry not found")

var AppendCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "osmdag",
	Subsystem: "log",
	Name:      "appends_total",
})

const (
	valueFieldName = "value"
	linksFieldName = "links"

	defaultCacheSize = 4096
)

var (
	headKey       = []byte("head")
	seqPrefix     = []byte("seq/")
	versionPrefix = []byte("ver/")
)

// Entry is a value to append along with the versions it supersedes.
type Entry struct {
	Value datamodel.Node
	Links []string
}

// Node is an entry that has been written to the log.
type Node struct {
	// Seq is the local append position of the entry.
	Seq uint64
	// Version is the content address of the entry.
	Version string
	// Value is the value the entry was created with.
	Value datamodel.Node
	// Links contains the versions this entry supersedes.
	Links []string
}

type Options struct {
	// CacheSize is the number of decoded entries kept in memory.
	CacheSize int
	// Logger is used to report log activity.
	Logger *slog.Logger
}

// Log is an append-only log of content addressed entries.
type Log struct {
	links  *link.Store
	meta   storage.Store
	cache  *lru.Cache[string, *Node]
	logger *slog.Logger

	appendLock sync.Mutex
	seq        atomic.Uint64

	notifyLock sync.Mutex
	notify     chan struct{}
}

// Open returns a log that stores entries in links and sequence metadata in meta.
func Open(ctx context.Context, links *link.Store, meta storage.Store, opts Options) (*Log, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *Node](size)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Log{
		links:  links,
		meta:   meta,
		cache:  cache,
		logger: logger.With("component", "log"),
		notify: make(chan struct{}),
	}
	data, err := meta.Get(ctx, headKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		l.seq.Store(binary.BigEndian.Uint64(data))
	}
	l.logger.Debug("log opened", "seq", l.seq.Load())
	return l, nil
}

// Seq returns the sequence number of the last appended entry.
func (l *Log) Seq() uint64 {
	return l.seq.Load()
}

// Append writes a single entry to the log.
func (l *Log) Append(ctx context.Context, value datamodel.Node, links []string) (*Node, error) {
	nodes, err := l.AppendBatch(ctx, []Entry{{Value: value, Links: links}})
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// AppendBatch writes all of the given entries to the log atomically.
//
// Appending an entry that already exists returns the existing node.
func (l *Log) AppendBatch(ctx context.Context, entries []Entry) ([]*Node, error) {
	l.appendLock.Lock()
	defer l.appendLock.Unlock()

	seq := l.seq.Load()
	nodes := make([]*Node, len(entries))
	fresh := make(map[string]*Node)

	var batch storage.Batch
	for i, e := range entries {
		envelope, err := buildEnvelope(e)
		if err != nil {
			return nil, err
		}
		for _, v := range e.Links {
			if _, ok := fresh[v]; ok {
				continue
			}
			_, err := l.lookupSeq(ctx, v)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: link %s", ErrNotFound, v)
			}
			if err != nil {
				return nil, err
			}
		}
		lnk, err := l.links.Store(ctx, envelope)
		if err != nil {
			return nil, err
		}
		version := lnk.String()
		if n, ok := fresh[version]; ok {
			nodes[i] = n
			continue
		}
		existing, err := l.lookupSeq(ctx, version)
		if err == nil {
			nodes[i] = &Node{Seq: existing, Version: version, Value: e.Value, Links: e.Links}
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		seq++
		n := &Node{Seq: seq, Version: version, Value: e.Value, Links: e.Links}
		batch.Put(seqKey(seq), []byte(version))
		batch.Put(versionKey(version), encodeSeq(seq))
		fresh[version] = n
		nodes[i] = n
	}
	if len(fresh) == 0 {
		return nodes, nil
	}
	batch.Put(headKey, encodeSeq(seq))
	if err := batch.Commit(ctx, l.meta); err != nil {
		return nil, err
	}
	for version, n := range fresh {
		l.cache.Add(version, n)
	}
	AppendCount.Add(float64(len(fresh)))
	l.seq.Store(seq)
	l.broadcast()

	l.logger.Debug("entries appended", "count", len(fresh), "seq", seq)
	return nodes, nil
}

// Get returns the entry with the given version.
func (l *Log) Get(ctx context.Context, version string) (*Node, error) {
	if n, ok := l.cache.Get(version); ok {
		return n, nil
	}
	seq, err := l.lookupSeq(ctx, version)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
	}
	if err != nil {
		return nil, err
	}
	lnk, err := link.Parse(version)
	if err != nil {
		return nil, err
	}
	envelope, err := l.links.Load(ctx, lnk, basicnode.Prototype.Map)
	if err != nil {
		return nil, err
	}
	n, err := parseEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", version, err)
	}
	n.Seq = seq
	n.Version = version
	l.cache.Add(version, n)
	return n, nil
}

// Range returns all entries with a sequence number greater than after in append order.
func (l *Log) Range(ctx context.Context, after uint64) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		for pair, err := range l.meta.Iterate(ctx, seqKey(after+1), storage.PrefixEnd(seqPrefix)) {
			if err != nil {
				yield(nil, err)
				return
			}
			n, err := l.Get(ctx, string(pair.Value))
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

// Wait blocks until the log contains an entry with a sequence number greater than after.
func (l *Log) Wait(ctx context.Context, after uint64) error {
	for {
		l.notifyLock.Lock()
		ch := l.notify
		l.notifyLock.Unlock()

		if l.seq.Load() > after {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Export writes the entry with the given version and its ancestors as a CAR.
func (l *Log) Export(ctx context.Context, version string, w io.Writer) (int64, error) {
	if _, err := l.lookupSeq(ctx, version); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return 0, err
	}
	return l.links.Export(ctx, version, w)
}

func (l *Log) broadcast() {
	l.notifyLock.Lock()
	defer l.notifyLock.Unlock()

	close(l.notify)
	l.notify = make(chan struct{})
}

func (l *Log) lookupSeq(ctx context.Context, version string) (uint64, error) {
	data, err := l.meta.Get(ctx, versionKey(version))
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func buildEnvelope(e Entry) (datamodel.Node, error) {
	links := make([]datamodel.Link, len(e.Links))
	for i, v := range e.Links {
		lnk, err := link.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid link %q: %w", v, err)
		}
		links[i] = lnk
	}
	return qp.BuildMap(basicnode.Prototype.Map, 2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, valueFieldName, qp.Node(e.Value))
		qp.MapEntry(ma, linksFieldName, qp.List(int64(len(links)), func(la datamodel.ListAssembler) {
			for _, lnk := range links {
				qp.ListEntry(la, qp.Link(lnk))
			}
		}))
	})
}

func parseEnvelope(envelope datamodel.Node) (*Node, error) {
	value, err := envelope.LookupByString(valueFieldName)
	if err != nil {
		return nil, err
	}
	linksNode, err := envelope.LookupByString(linksFieldName)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, linksNode.Length())
	for iter := linksNode.ListIterator(); !iter.Done(); {
		_, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		lnk, err := v.AsLink()
		if err != nil {
			return nil, err
		}
		links = append(links, lnk.String())
	}
	return &Node{Value: value, Links: links}, nil
}

func encodeSeq(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

func seqKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, seqPrefix...), seq)
}

func versionKey(version string) []byte {
	return append(append([]byte{}, versionPrefix...), version...)
}
