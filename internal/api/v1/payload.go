package v1

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Payload is a raw event payload as the ingestion pipeline defines it.
// The engine only reads and writes a handful of well-known paths.
type Payload map[string]interface{}

// GetPath walks nested objects and returns the value at path, or nil.
func (p Payload) GetPath(path ...string) interface{} {
	var current interface{} = map[string]interface{}(p)
	for _, key := range path {
		obj, ok := asObject(current)
		if !ok {
			return nil
		}
		current, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return current
}

// SetPath stores value at path, creating intermediate objects and replacing
// non-object values that are in the way.
func (p Payload) SetPath(value interface{}, path ...string) {
	if len(path) == 0 {
		return
	}
	current := map[string]interface{}(p)
	for _, key := range path[:len(path)-1] {
		next, ok := asObject(current[key])
		if !ok {
			next = make(map[string]interface{})
		}
		current[key] = next
		current = next
	}
	current[path[len(path)-1]] = value
}

// ProjectID returns the payload's "project" field.
func (p Payload) ProjectID() int64 {
	id, _ := AsInt64(p["project"])
	return id
}

// EventID returns the payload's "event_id" field.
func (p Payload) EventID() string {
	s, _ := p["event_id"].(string)
	return s
}

// UnmarshalJSON decodes numbers as json.Number. Group ids are snowflake values
// above 2^53 and would lose precision as float64.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*p = raw
	return nil
}

// Clone returns a deep copy through a JSON round trip.
func (p Payload) Clone() (Payload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out Payload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, true
	case Payload:
		return obj, true
	default:
		return nil, false
	}
}

// AsInt64 converts the numeric shapes a decoded payload can carry.
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
