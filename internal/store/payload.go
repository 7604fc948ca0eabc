package store

import (
	"bytes"
	"encoding/json"
	"sort"
)

// PayloadKind tags the shape an inbound document was recognised as.
type PayloadKind int

const (
	// PayloadInvalid is any document that could not be coerced. It replaces
	// the task collection with an empty one.
	PayloadInvalid PayloadKind = iota
	// PayloadArray is a bare array of tasks.
	PayloadArray
	// PayloadWrapper is an object carrying an items (or tasks) array plus
	// optional categories, templates, analytics, settings and productivity.
	PayloadWrapper
	// PayloadIDMap is an object mapping task ids to tasks.
	PayloadIDMap
)

// String returns the shape name.
func (k PayloadKind) String() string {
	switch k {
	case PayloadArray:
		return "array"
	case PayloadWrapper:
		return "wrapper"
	case PayloadIDMap:
		return "id-map"
	default:
		return "invalid"
	}
}

// Payload is an inbound document coerced into the canonical shape. Nil
// optional fields were absent and leave the current value untouched.
type Payload struct {
	Kind         PayloadKind
	Items        []Task
	Categories   []Category
	Templates    []Task
	Analytics    *Analytics
	Settings     *Settings
	Productivity *ProductivitySettings
}

// Document is the egress shape written to persistence and the remote store.
type Document struct {
	Tasks        []Task               `json:"tasks"`
	Productivity ProductivitySettings `json:"productivity"`
	Categories   []Category           `json:"categories"`
	Templates    []Task               `json:"templates"`
	Analytics    Analytics            `json:"analytics"`
	Settings     Settings             `json:"settings"`
}

// Snapshot builds the egress document for a state.
func Snapshot(st State) Document {
	st = st.Clone()
	st.normalize()
	return Document{
		Tasks:        st.Items,
		Productivity: st.Productivity,
		Categories:   st.Categories,
		Templates:    st.Templates,
		Analytics:    st.Analytics,
		Settings:     st.Settings,
	}
}

// EncodeSnapshot serializes the egress document for a state.
func EncodeSnapshot(st State) ([]byte, error) {
	return json.Marshal(Snapshot(st))
}

// ParsePayload classifies and decodes an inbound document. It never fails:
// anything it cannot coerce becomes PayloadInvalid with no items.
func ParsePayload(raw []byte) Payload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return invalidPayload()
	}
	switch raw[0] {
	case '[':
		items, ok := decodeTasks(raw)
		if !ok {
			return invalidPayload()
		}
		return Payload{Kind: PayloadArray, Items: items}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return invalidPayload()
		}
		if p, ok := parseWrapper(fields); ok {
			return p
		}
		return parseIDMap(fields)
	}
	return invalidPayload()
}

func invalidPayload() Payload {
	return Payload{Kind: PayloadInvalid, Items: []Task{}}
}

// parseWrapper recognises {items:[...]} and the egress shape {tasks:...}.
func parseWrapper(fields map[string]json.RawMessage) (Payload, bool) {
	if items, ok := fields["items"]; ok && isArray(items) {
		p := Payload{Kind: PayloadWrapper}
		if p.Items, ok = decodeTasks(items); !ok {
			return invalidPayload(), true
		}
		adoptOptional(&p, fields)
		return p, true
	}

	tasks, ok := fields["tasks"]
	if !ok {
		return Payload{}, false
	}
	switch {
	case isArray(tasks):
		p := Payload{Kind: PayloadWrapper}
		if p.Items, ok = decodeTasks(tasks); !ok {
			return invalidPayload(), true
		}
		adoptOptional(&p, fields)
		return p, true
	case isObject(tasks):
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(tasks, &nested); err != nil {
			return invalidPayload(), true
		}
		p := Payload{Kind: PayloadWrapper, Items: []Task{}}
		if items, ok := nested["items"]; ok && isArray(items) {
			if p.Items, ok = decodeTasks(items); !ok {
				return invalidPayload(), true
			}
		}
		adoptOptional(&p, nested)
		adoptOptional(&p, fields)
		return p, true
	}
	return Payload{}, false
}

// parseIDMap treats every value of the object as a task keyed by id.
func parseIDMap(fields map[string]json.RawMessage) Payload {
	items := make([]Task, 0, len(fields))
	for _, v := range fields {
		if !isObject(v) {
			return invalidPayload()
		}
		var t Task
		if err := json.Unmarshal(v, &t); err != nil || t.ID == "" {
			return invalidPayload()
		}
		t.normalize()
		items = append(items, t)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return Payload{Kind: PayloadIDMap, Items: items}
}

// adoptOptional copies every present, decodable optional field into p.
func adoptOptional(p *Payload, fields map[string]json.RawMessage) {
	if raw, ok := fields["categories"]; ok && isArray(raw) {
		var cs []Category
		if json.Unmarshal(raw, &cs) == nil {
			p.Categories = cs
		}
	}
	if raw, ok := fields["templates"]; ok && isArray(raw) {
		if ts, ok := decodeTasks(raw); ok {
			p.Templates = ts
		}
	}
	if raw, ok := fields["analytics"]; ok && isObject(raw) {
		var a Analytics
		if json.Unmarshal(raw, &a) == nil {
			p.Analytics = &a
		}
	}
	if raw, ok := fields["settings"]; ok && isObject(raw) {
		var s Settings
		if json.Unmarshal(raw, &s) == nil {
			p.Settings = &s
		}
	}
	if raw, ok := fields["productivity"]; ok && isObject(raw) {
		var ps ProductivitySettings
		if json.Unmarshal(raw, &ps) == nil {
			p.Productivity = &ps
		}
	}
}

// decodeTasks decodes an array of tasks, dropping entries without an id.
func decodeTasks(raw json.RawMessage) ([]Task, bool) {
	var ts []Task
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, false
	}
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if t.ID == "" {
			continue
		}
		t.normalize()
		out = append(out, t)
	}
	return out, true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// ReplaceAll swaps in an externally sourced state.
type ReplaceAll struct {
	Payload Payload
}

// ReplaceAllFromJSON parses raw once and wraps it in a ReplaceAll request.
func ReplaceAllFromJSON(raw []byte) ReplaceAll {
	return ReplaceAll{Payload: ParsePayload(raw)}
}

func (r ReplaceAll) apply(st *State, _ *env) error {
	p := r.Payload
	st.Items = cloneTasks(p.Items)
	if p.Categories != nil {
		st.Categories = append([]Category{}, p.Categories...)
	}
	if p.Templates != nil {
		st.Templates = cloneTasks(p.Templates)
	}
	if p.Analytics != nil {
		st.Analytics = p.Analytics.clone()
	}
	if p.Settings != nil {
		st.Settings = *p.Settings
	}
	if p.Productivity != nil {
		st.Productivity = *p.Productivity
	}
	st.normalize()
	return nil
}

// CompareAndReplace is a ReplaceAll that applies only while the current
// state still encodes to Base. Otherwise it fails with ErrStateChanged.
type CompareAndReplace struct {
	Base    []byte
	Payload Payload
}

func (r CompareAndReplace) apply(st *State, e *env) error {
	current, err := EncodeSnapshot(*st)
	if err != nil {
		return err
	}
	if !bytes.Equal(current, r.Base) {
		return ErrStateChanged
	}
	return ReplaceAll{Payload: r.Payload}.apply(st, e)
}
