package graphql

import (
	"encoding/json"
	"fmt"

	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/document"
)

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func stringsArg(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list but got %T", v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string but got %T", item)
		}
		out[i] = s
	}
	return out, nil
}

func floatArg(v any) (float64, bool, error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case json.Number:
		f, err := t.Float64()
		return f, err == nil, err
	default:
		return 0, false, fmt.Errorf("expected number but got %T", v)
	}
}

func objectArg(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object but got %T", v)
	}
	return obj, nil
}

func bboxArg(v any) (core.BBox, error) {
	obj, err := objectArg(v)
	if err != nil {
		return core.BBox{}, err
	}
	var bbox core.BBox
	for name, dst := range map[string]*float64{
		"minLat": &bbox.MinLat,
		"minLon": &bbox.MinLon,
		"maxLat": &bbox.MaxLat,
		"maxLon": &bbox.MaxLon,
	} {
		f, ok, err := floatArg(obj[name])
		if err != nil {
			return core.BBox{}, fmt.Errorf("bbox %s: %w", name, err)
		}
		if !ok {
			return core.BBox{}, fmt.Errorf("bbox %s is required", name)
		}
		*dst = f
	}
	return bbox, nil
}

func valueArg(v any) (*document.Value, error) {
	obj, err := objectArg(v)
	if err != nil {
		return nil, err
	}
	value := &document.Value{
		Type:      stringArg(obj, "type"),
		Changeset: stringArg(obj, "changeset"),
		Timestamp: stringArg(obj, "timestamp"),
	}
	lat, hasLat, err := floatArg(obj["lat"])
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lon, hasLon, err := floatArg(obj["lon"])
	if err != nil {
		return nil, fmt.Errorf("lon: %w", err)
	}
	if hasLat && hasLon {
		value.Lat, value.Lon = lat, lon
		if value.Type == "" {
			value.Type = document.TypeNode
		}
	}
	if value.Refs, err = stringsArg(obj["refs"]); err != nil {
		return nil, fmt.Errorf("refs: %w", err)
	}
	if value.Members, err = membersArg(obj["members"]); err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	if value.Tags, err = tagsArg(obj["tags"]); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	return value, nil
}

func membersArg(v any) ([]document.Member, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list but got %T", v)
	}
	members := make([]document.Member, 0, len(list))
	for _, item := range list {
		obj, err := objectArg(item)
		if err != nil {
			return nil, err
		}
		members = append(members, document.Member{
			Ref:  stringArg(obj, "ref"),
			Role: stringArg(obj, "role"),
			Type: stringArg(obj, "type"),
		})
	}
	return members, nil
}

func tagsArg(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list but got %T", v)
	}
	tags := make(map[string]string, len(list))
	for _, item := range list {
		obj, err := objectArg(item)
		if err != nil {
			return nil, err
		}
		tags[stringArg(obj, "key")] = stringArg(obj, "value")
	}
	return tags, nil
}

func rowsArg(v any) ([]document.Row, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list but got %T", v)
	}
	rows := make([]document.Row, len(list))
	for i, item := range list {
		obj, err := objectArg(item)
		if err != nil {
			return nil, err
		}
		rows[i] = document.Row{
			Type: stringArg(obj, "type"),
			Key:  stringArg(obj, "key"),
		}
		if obj["value"] != nil {
			if rows[i].Value, err = valueArg(obj["value"]); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
		if rows[i].Links, err = stringsArg(obj["links"]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return rows, nil
}
