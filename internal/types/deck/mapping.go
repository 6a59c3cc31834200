package deck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValueKind discriminates MappedValue payloads.
type ValueKind string

const (
	ValueEmpty ValueKind = "empty"
	ValueText  ValueKind = "text"
	ValueList  ValueKind = "list"
	ValueAsset ValueKind = "asset"
)

// Role records which SlideContent field a value came from.
type Role string

const (
	RoleNone    Role = ""
	RoleTitle   Role = "title"
	RoleBody    Role = "body"
	RoleImage   Role = "image"
	RoleDiagram Role = "diagram"
)

// MappedValue is the content assigned to one placeholder.
type MappedValue struct {
	Kind  ValueKind `json:"kind"`
	Role  Role      `json:"role,omitempty"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
	// Path is a filesystem path for asset values.
	Path string `json:"path,omitempty"`
	// Ref indexes into SlideContent.Images or SlideContent.Diagrams.
	Ref int `json:"ref,omitempty"`
}

func Empty() MappedValue { return MappedValue{Kind: ValueEmpty} }

func Text(role Role, s string) MappedValue {
	return MappedValue{Kind: ValueText, Role: role, Text: s}
}

func List(role Role, items []string) MappedValue {
	return MappedValue{Kind: ValueList, Role: role, Items: append([]string{}, items...)}
}

func Asset(role Role, ref int, path string) MappedValue {
	return MappedValue{Kind: ValueAsset, Role: role, Ref: ref, Path: path}
}

// FromBody converts a Body into a text or list value.
func FromBody(role Role, b Body) MappedValue {
	if b.IsList() {
		return List(role, b.Items)
	}
	return Text(role, b.Text)
}

func (v MappedValue) IsEmpty() bool {
	switch v.Kind {
	case ValueText:
		return strings.TrimSpace(v.Text) == ""
	case ValueList:
		return len(v.Items) == 0
	case ValueAsset:
		return strings.TrimSpace(v.Path) == ""
	}
	return true
}

// IsTextual reports whether fit estimation applies.
func (v MappedValue) IsTextual() bool { return v.Kind == ValueText || v.Kind == ValueList }

// Body converts a textual value back into a Body.
func (v MappedValue) Body() Body {
	if v.Kind == ValueList {
		return ListBody(v.Items...)
	}
	return TextBody(v.Text)
}

// ContentMapping assigns content to every placeholder of one layout.
type ContentMapping struct {
	SlideIndex  int                 `json:"slide_index"`
	LayoutIndex int                 `json:"layout_index"`
	Values      map[int]MappedValue `json:"values"`
}

// Indices returns the mapped placeholder indices in ascending order.
func (m ContentMapping) Indices() []int {
	out := make([]int, 0, len(m.Values))
	for idx := range m.Values {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Clone deep-copies the mapping so correction retries never alias.
func (m ContentMapping) Clone() ContentMapping {
	out := ContentMapping{SlideIndex: m.SlideIndex, LayoutIndex: m.LayoutIndex, Values: make(map[int]MappedValue, len(m.Values))}
	for k, v := range m.Values {
		if v.Items != nil {
			v.Items = append([]string{}, v.Items...)
		}
		out.Values[k] = v
	}
	return out
}

// Validate enforces that the mapping covers exactly the layout's placeholders.
func (m ContentMapping) Validate(l Layout) error {
	if m.LayoutIndex != l.Index {
		return fmt.Errorf("mapping layout %d does not match layout %d", m.LayoutIndex, l.Index)
	}
	for idx := range m.Values {
		if _, ok := l.Placeholder(idx); !ok {
			return fmt.Errorf("placeholder %d is not in layout %d", idx, l.Index)
		}
	}
	for _, p := range l.Placeholders {
		if _, ok := m.Values[p.Index]; !ok {
			return fmt.Errorf("placeholder %d of layout %d is unmapped", p.Index, l.Index)
		}
	}
	return nil
}

// RawValue is the loose mapping value a model returns: a string or a list of
// strings.
type RawValue struct {
	Text   string
	Items  []string
	IsList bool
}

func (r *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = RawValue{}
		return nil
	}
	if data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*r = RawValue{Items: items, IsList: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("mapping value must be a string or list of strings: %w", err)
	}
	*r = RawValue{Text: s}
	return nil
}

func (r RawValue) MarshalJSON() ([]byte, error) {
	if r.IsList {
		return json.Marshal(r.Items)
	}
	return json.Marshal(r.Text)
}
