// Package document defines the map documents stored in the log.
package document

import (
	"encoding/json"
	"fmt"
	"slices"
)

const (
	// TypeNode is the type of a point document.
	TypeNode = "node"
	// TypeWay is the type of a document referencing an ordered list of nodes.
	TypeWay = "way"
	// TypeRelation is the type of a document with a list of members.
	TypeRelation = "relation"
)

const (
	// RowPut is a batch row that writes a new version of a document.
	RowPut = "put"
	// RowDel is a batch row that deletes the heads of a document.
	RowDel = "del"
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member is a relation member.
//
// A member without a role or type is encoded as a bare reference.
type Member struct {
	Ref  string `json:"ref"`
	Role string `json:"role,omitempty"`
	Type string `json:"type,omitempty"`
}

// IsBare returns true if the member only contains a reference.
func (m Member) IsBare() bool {
	return m.Role == "" && m.Type == ""
}

func (m Member) MarshalJSON() ([]byte, error) {
	if m.IsBare() {
		return json.Marshal(m.Ref)
	}
	type member Member
	return json.Marshal(member(m))
}

func (m *Member) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*m = Member{Ref: ref}
		return nil
	}
	type member Member
	var out member
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("invalid member: %w", err)
	}
	*m = Member(out)
	return nil
}

// Value is the content of a single document version.
type Value struct {
	Type      string
	Lat       float64
	Lon       float64
	Refs      []string
	Members   []Member
	Changeset string
	Tags      map[string]string
	Timestamp string
}

// IsPoint returns true if the value has point geometry.
func (v *Value) IsPoint() bool {
	return v.Type == TypeNode
}

// Point returns the point geometry of the value.
func (v *Value) Point() Point {
	return Point{Lat: v.Lat, Lon: v.Lon}
}

// References returns the ids of all documents the value refers to.
func (v *Value) References() []string {
	return references(v.Refs, v.Members)
}

type jsonValue struct {
	Type      string            `json:"type,omitempty"`
	Lat       *float64          `json:"lat,omitempty"`
	Lon       *float64          `json:"lon,omitempty"`
	Refs      []string          `json:"refs,omitempty"`
	Nodes     []string          `json:"nodes,omitempty"`
	Members   []Member          `json:"members,omitempty"`
	Changeset string            `json:"changeset,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := jsonValue{
		Type:      v.Type,
		Refs:      v.Refs,
		Members:   v.Members,
		Changeset: v.Changeset,
		Tags:      v.Tags,
		Timestamp: v.Timestamp,
	}
	if v.IsPoint() {
		out.Lat = &v.Lat
		out.Lon = &v.Lon
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var in jsonValue
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = Value{
		Type:      in.Type,
		Refs:      in.Refs,
		Members:   in.Members,
		Changeset: in.Changeset,
		Tags:      in.Tags,
		Timestamp: in.Timestamp,
	}
	if len(v.Refs) == 0 {
		v.Refs = in.Nodes
	}
	if in.Lat != nil && in.Lon != nil {
		v.Lat = *in.Lat
		v.Lon = *in.Lon
		if v.Type == "" {
			v.Type = TypeNode
		}
	}
	return nil
}

// Document is a resolved version of a document.
type Document struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Deleted bool   `json:"deleted,omitempty"`
	Value   *Value `json:"value,omitempty"`
}

// Type returns the type of the document value.
func (d Document) Type() string {
	if d.Value == nil {
		return ""
	}
	return d.Value.Type
}

// Row is a single operation in a batch.
type Row struct {
	// Type is either RowPut or RowDel.
	Type string `json:"type"`
	// Key is the document id. A random id is assigned when empty.
	Key string `json:"key,omitempty"`
	// Value is the document value of a put row.
	Value *Value `json:"value,omitempty"`
	// Links are the versions superseded by the row.
	//
	// For put rows the current heads are used when empty.
	// For del rows this selects the heads to delete.
	Links []string `json:"links,omitempty"`
}

func references(refs []string, members []Member) []string {
	out := make([]string, 0, len(refs)+len(members))
	out = append(out, refs...)
	for _, m := range members {
		out = append(out, m.Ref)
	}
	return out
}

// TypeOrder returns the sort rank of the given document type.
func TypeOrder(t string) int {
	switch t {
	case TypeNode:
		return 0
	case TypeWay:
		return 1
	case TypeRelation:
		return 2
	default:
		return 3
	}
}

// SortByType stable sorts the documents so nodes come before ways and ways before relations.
func SortByType(docs []Document) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		return TypeOrder(a.Type()) - TypeOrder(b.Type())
	})
}
