package document

import (
	"fmt"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

const (
	// KeyFieldName is the document id of a live record.
	KeyFieldName = "k"
	// ValueFieldName is the value of a live record.
	ValueFieldName = "v"
	// DeletedFieldName is the document id of a deletion record.
	DeletedFieldName = "d"
	// PointsFieldName is the point snapshot of a deletion record.
	PointsFieldName = "points"
	// RefsFieldName is the refs snapshot of a deletion record.
	RefsFieldName = "refs"
	// MembersFieldName is the members snapshot of a deletion record.
	MembersFieldName = "members"
)

const (
	typeFieldName      = "type"
	latFieldName       = "lat"
	lonFieldName       = "lon"
	refFieldName       = "ref"
	roleFieldName      = "role"
	changesetFieldName = "changeset"
	tagsFieldName      = "tags"
	timestampFieldName = "timestamp"
)

// Record is the value of a log entry.
//
// A live record contains a document id and value. A deletion record contains
// the id of the deleted document and a snapshot of the geometry and references
// of the heads it retires.
type Record struct {
	Key     string
	Value   *Value
	Deleted string
	Points  []Point
	Refs    []string
	Members []Member
}

// IsDeletion returns true if the record deletes a document.
func (r *Record) IsDeletion() bool {
	return r.Deleted != ""
}

// Owner returns the id of the document the record belongs to.
func (r *Record) Owner() string {
	if r.IsDeletion() {
		return r.Deleted
	}
	return r.Key
}

// Geometry returns the points the record contributes to the spatial index.
func (r *Record) Geometry() []Point {
	if r.IsDeletion() {
		return r.Points
	}
	if r.Value != nil && r.Value.IsPoint() {
		return []Point{r.Value.Point()}
	}
	return nil
}

// References returns the ids of all documents the record refers to.
func (r *Record) References() []string {
	if r.IsDeletion() {
		return references(r.Refs, r.Members)
	}
	if r.Value == nil {
		return nil
	}
	return r.Value.References()
}

// Changeset returns the changeset of a live record.
func (r *Record) Changeset() string {
	if r.IsDeletion() || r.Value == nil {
		return ""
	}
	return r.Value.Changeset
}

// Document returns the record resolved as a document with the given version.
func (r *Record) Document(version string) Document {
	if r.IsDeletion() {
		return Document{ID: r.Deleted, Version: version, Deleted: true}
	}
	return Document{ID: r.Key, Version: version, Value: r.Value}
}

// Encode returns the IPLD representation of the record.
func (r *Record) Encode() (datamodel.Node, error) {
	if r.IsDeletion() {
		return qp.BuildMap(basicnode.Prototype.Map, 4, func(ma datamodel.MapAssembler) {
			qp.MapEntry(ma, DeletedFieldName, qp.String(r.Deleted))
			if len(r.Points) > 0 {
				qp.MapEntry(ma, PointsFieldName, assemblePoints(r.Points))
			}
			if len(r.Refs) > 0 {
				qp.MapEntry(ma, RefsFieldName, assembleStrings(r.Refs))
			}
			if len(r.Members) > 0 {
				qp.MapEntry(ma, MembersFieldName, assembleMembers(r.Members))
			}
		})
	}
	if r.Key == "" || r.Value == nil {
		return nil, fmt.Errorf("record requires a key and value")
	}
	return qp.BuildMap(basicnode.Prototype.Map, 2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, KeyFieldName, qp.String(r.Key))
		qp.MapEntry(ma, ValueFieldName, assembleValue(r.Value))
	})
}

func assembleValue(v *Value) qp.Assemble {
	return qp.Map(8, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, typeFieldName, qp.String(v.Type))
		if v.IsPoint() {
			qp.MapEntry(ma, latFieldName, qp.Float(v.Lat))
			qp.MapEntry(ma, lonFieldName, qp.Float(v.Lon))
		}
		if len(v.Refs) > 0 {
			qp.MapEntry(ma, RefsFieldName, assembleStrings(v.Refs))
		}
		if len(v.Members) > 0 {
			qp.MapEntry(ma, MembersFieldName, assembleMembers(v.Members))
		}
		if v.Changeset != "" {
			qp.MapEntry(ma, changesetFieldName, qp.String(v.Changeset))
		}
		if len(v.Tags) > 0 {
			qp.MapEntry(ma, tagsFieldName, qp.Map(int64(len(v.Tags)), func(ma datamodel.MapAssembler) {
				for k, t := range v.Tags {
					qp.MapEntry(ma, k, qp.String(t))
				}
			}))
		}
		if v.Timestamp != "" {
			qp.MapEntry(ma, timestampFieldName, qp.String(v.Timestamp))
		}
	})
}

func assemblePoints(points []Point) qp.Assemble {
	return qp.List(int64(len(points)), func(la datamodel.ListAssembler) {
		for _, p := range points {
			qp.ListEntry(la, qp.Map(2, func(ma datamodel.MapAssembler) {
				qp.MapEntry(ma, latFieldName, qp.Float(p.Lat))
				qp.MapEntry(ma, lonFieldName, qp.Float(p.Lon))
			}))
		}
	})
}

func assembleStrings(values []string) qp.Assemble {
	return qp.List(int64(len(values)), func(la datamodel.ListAssembler) {
		for _, v := range values {
			qp.ListEntry(la, qp.String(v))
		}
	})
}

func assembleMembers(members []Member) qp.Assemble {
	return qp.List(int64(len(members)), func(la datamodel.ListAssembler) {
		for _, m := range members {
			if m.IsBare() {
				qp.ListEntry(la, qp.String(m.Ref))
				continue
			}
			qp.ListEntry(la, qp.Map(3, func(ma datamodel.MapAssembler) {
				qp.MapEntry(ma, refFieldName, qp.String(m.Ref))
				if m.Role != "" {
					qp.MapEntry(ma, roleFieldName, qp.String(m.Role))
				}
				if m.Type != "" {
					qp.MapEntry(ma, typeFieldName, qp.String(m.Type))
				}
			}))
		}
	})
}
