package document

import (
	"fmt"

	"github.com/ipld/go-ipld-prime/datamodel"
)

// DecodeRecord returns the record contained in the given node.
func DecodeRecord(n datamodel.Node) (*Record, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, fmt.Errorf("invalid record kind %s", n.Kind())
	}
	var r Record
	for iter := n.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		field, err := k.AsString()
		if err != nil {
			return nil, err
		}
		switch field {
		case KeyFieldName:
			r.Key, err = v.AsString()
		case DeletedFieldName:
			r.Deleted, err = v.AsString()
		case ValueFieldName:
			r.Value, err = decodeValue(v)
		case PointsFieldName:
			r.Points, err = decodePoints(v)
		case RefsFieldName:
			r.Refs, err = decodeStrings(v)
		case MembersFieldName:
			r.Members, err = decodeMembers(v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
	}
	if !r.IsDeletion() && (r.Key == "" || r.Value == nil) {
		return nil, fmt.Errorf("record is missing a key or value")
	}
	return &r, nil
}

func decodeValue(n datamodel.Node) (*Value, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, fmt.Errorf("invalid value kind %s", n.Kind())
	}
	var v Value
	var hasLat, hasLon bool
	for iter := n.MapIterator(); !iter.Done(); {
		k, f, err := iter.Next()
		if err != nil {
			return nil, err
		}
		field, err := k.AsString()
		if err != nil {
			return nil, err
		}
		switch field {
		case typeFieldName:
			v.Type, err = f.AsString()
		case latFieldName:
			v.Lat, err = asFloat(f)
			hasLat = true
		case lonFieldName:
			v.Lon, err = asFloat(f)
			hasLon = true
		case RefsFieldName, "nodes":
			v.Refs, err = decodeStrings(f)
		case MembersFieldName:
			v.Members, err = decodeMembers(f)
		case changesetFieldName:
			v.Changeset, err = f.AsString()
		case tagsFieldName:
			v.Tags, err = decodeTags(f)
		case timestampFieldName:
			v.Timestamp, err = f.AsString()
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
	}
	if v.Type == "" && hasLat && hasLon {
		v.Type = TypeNode
	}
	return &v, nil
}

func decodePoints(n datamodel.Node) ([]Point, error) {
	points := make([]Point, 0, n.Length())
	for iter := n.ListIterator(); iter != nil && !iter.Done(); {
		_, p, err := iter.Next()
		if err != nil {
			return nil, err
		}
		latNode, err := p.LookupByString(latFieldName)
		if err != nil {
			return nil, err
		}
		lonNode, err := p.LookupByString(lonFieldName)
		if err != nil {
			return nil, err
		}
		lat, err := asFloat(latNode)
		if err != nil {
			return nil, err
		}
		lon, err := asFloat(lonNode)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

func decodeStrings(n datamodel.Node) ([]string, error) {
	values := make([]string, 0, n.Length())
	for iter := n.ListIterator(); iter != nil && !iter.Done(); {
		_, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		s, err := v.AsString()
		if err != nil {
			return nil, err
		}
		values = append(values, s)
	}
	return values, nil
}

// decodeMembers skips members whose ref is not a string.
func decodeMembers(n datamodel.Node) ([]Member, error) {
	members := make([]Member, 0, n.Length())
	for iter := n.ListIterator(); iter != nil && !iter.Done(); {
		_, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		m, ok := decodeMember(v)
		if !ok {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

func decodeMember(n datamodel.Node) (Member, bool) {
	switch n.Kind() {
	case datamodel.Kind_String:
		ref, err := n.AsString()
		return Member{Ref: ref}, err == nil
	case datamodel.Kind_Map:
		refNode, err := n.LookupByString(refFieldName)
		if err != nil {
			return Member{}, false
		}
		ref, err := refNode.AsString()
		if err != nil {
			return Member{}, false
		}
		return Member{
			Ref:  ref,
			Role: optionalString(n, roleFieldName),
			Type: optionalString(n, typeFieldName),
		}, true
	default:
		return Member{}, false
	}
}

func decodeTags(n datamodel.Node) (map[string]string, error) {
	tags := make(map[string]string, n.Length())
	for iter := n.MapIterator(); iter != nil && !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		key, err := k.AsString()
		if err != nil {
			return nil, err
		}
		val, err := v.AsString()
		if err != nil {
			return nil, err
		}
		tags[key] = val
	}
	return tags, nil
}

func optionalString(n datamodel.Node, field string) string {
	v, err := n.LookupByString(field)
	if err != nil {
		return ""
	}
	s, err := v.AsString()
	if err != nil {
		return ""
	}
	return s
}

func asFloat(n datamodel.Node) (float64, error) {
	switch n.Kind() {
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_Int:
		i, err := n.AsInt()
		return float64(i), err
	default:
		return 0, fmt.Errorf("invalid number kind %s", n.Kind())
	}
}
