package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"
)

// SpatialName is the name of the spatial index.
const SpatialName = "spatial"

var (
	pointsPrefix  = []byte("p/")
	versionPrefix = []byte("v/")
)

// pointSize is the encoded size of a point.
const pointSize = 16

// BBox is an inclusive bounding box.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains returns true if the point is within the bounding box.
func (b BBox) Contains(p document.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Match is a point found by a spatial query.
type Match struct {
	Version string
	Point   document.Point
}

// Spatial indexes the points contributed by each version.
//
// A version's points are retracted when another entry links to it.
type Spatial struct {
	*Indexer
}

// NewSpatial returns the spatial index stored in store.
func NewSpatial(ctx context.Context, log *oplog.Log, store storage.Store, opts Options) (*Spatial, error) {
	s := &Spatial{}
	x, err := NewIndexer(ctx, SpatialName, log, store, s.mapEntry, opts.Logger)
	if err != nil {
		return nil, err
	}
	s.Indexer = x
	return s, nil
}

// Query returns all indexed points within the bounding box.
func (s *Spatial) Query(ctx context.Context, bbox BBox) ([]Match, error) {
	var matches []Match
	for m, err := range s.QueryStream(ctx, bbox) {
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// QueryStream returns all indexed points within the bounding box ordered by latitude.
func (s *Spatial) QueryStream(ctx context.Context, bbox BBox) iter.Seq2[Match, error] {
	return func(yield func(Match, error) bool) {
		if bbox.MinLat > bbox.MaxLat || bbox.MinLon > bbox.MaxLon {
			return
		}
		lower := binary.BigEndian.AppendUint64(bytes.Clone(pointsPrefix), encodeFloat(bbox.MinLat))
		upper := storage.PrefixEnd(binary.BigEndian.AppendUint64(bytes.Clone(pointsPrefix), encodeFloat(bbox.MaxLat)))
		for pair, err := range s.store.Iterate(ctx, lower, upper) {
			if err != nil {
				yield(Match{}, err)
				return
			}
			m, err := parsePointKey(pair.Key)
			if err != nil {
				yield(Match{}, err)
				return
			}
			if !bbox.Contains(m.Point) {
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// Points returns the points currently indexed for the given version.
func (s *Spatial) Points(ctx context.Context, version string) ([]document.Point, error) {
	data, err := s.store.Get(ctx, spatialVersionKey(version))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePoints(data)
}

func (s *Spatial) mapEntry(ctx context.Context, n *oplog.Node, rec *document.Record, b *storage.Batch) error {
	for _, l := range n.Links {
		points, err := s.Points(ctx, l)
		if err != nil {
			return err
		}
		for _, p := range points {
			b.Delete(pointKey(p, l))
		}
		if len(points) > 0 {
			b.Delete(spatialVersionKey(l))
		}
	}
	points := rec.Geometry()
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		b.Put(pointKey(p, n.Version), nil)
	}
	b.Put(spatialVersionKey(n.Version), encodePoints(points))
	return nil
}

func pointKey(p document.Point, version string) []byte {
	key := make([]byte, 0, len(pointsPrefix)+pointSize+len(version))
	key = append(key, pointsPrefix...)
	key = binary.BigEndian.AppendUint64(key, encodeFloat(p.Lat))
	key = binary.BigEndian.AppendUint64(key, encodeFloat(p.Lon))
	return append(key, version...)
}

func parsePointKey(key []byte) (Match, error) {
	if len(key) < len(pointsPrefix)+pointSize {
		return Match{}, fmt.Errorf("invalid point key %x", key)
	}
	key = key[len(pointsPrefix):]
	return Match{
		Version: string(key[pointSize:]),
		Point: document.Point{
			Lat: decodeFloat(binary.BigEndian.Uint64(key[0:8])),
			Lon: decodeFloat(binary.BigEndian.Uint64(key[8:16])),
		},
	}, nil
}

func spatialVersionKey(version string) []byte {
	return append(bytes.Clone(versionPrefix), version...)
}

func encodePoints(points []document.Point) []byte {
	data := make([]byte, 0, len(points)*pointSize)
	for _, p := range points {
		data = binary.BigEndian.AppendUint64(data, math.Float64bits(p.Lat))
		data = binary.BigEndian.AppendUint64(data, math.Float64bits(p.Lon))
	}
	return data
}

func decodePoints(data []byte) ([]document.Point, error) {
	if len(data)%pointSize != 0 {
		return nil, fmt.Errorf("invalid points length %d", len(data))
	}
	points := make([]document.Point, 0, len(data)/pointSize)
	for i := 0; i < len(data); i += pointSize {
		points = append(points, document.Point{
			Lat: math.Float64frombits(binary.BigEndian.Uint64(data[i : i+8])),
			Lon: math.Float64frombits(binary.BigEndian.Uint64(data[i+8 : i+16])),
		})
	}
	return points, nil
}

const signBit = 1 << 63

// encodeFloat returns a representation of f whose byte order matches numeric order.
func encodeFloat(f float64) uint64 {
	if f == 0 {
		f = 0 // normalize negative zero
	}
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

func decodeFloat(bits uint64) float64 {
	if bits&signBit != 0 {
		return math.Float64frombits(bits &^ signBit)
	}
	return math.Float64frombits(^bits)
}
