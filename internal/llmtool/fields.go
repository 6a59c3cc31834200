package llmtool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Struct tags read by FieldsFromStruct:
//
//	json:"name"            field name; "-" drops the field
//	prompt_desc:"..."      description shown to the model
//	prompt_type:"..."      overrides the derived type shape
//	prompt:"optional"      also "required" or "-"
//
// Fields are required unless tagged optional or marked omitempty.
const (
	tagDesc   = "prompt_desc"
	tagType   = "prompt_type"
	tagPrompt = "prompt"
)

// nested struct shapes are spelled out this many levels deep
const maxShapeDepth = 2

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// FieldsFromStruct derives the output schema of a response type.
func FieldsFromStruct(v any) ([]PromptField, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("llmtool: nil response type")
	}
	t = deref(t)
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("llmtool: response type %s is not a struct", t)
	}
	var out []PromptField
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		name, omitEmpty := jsonName(f)
		mode := strings.TrimSpace(f.Tag.Get(tagPrompt))
		if name == "" || mode == "-" {
			continue
		}
		typ := strings.TrimSpace(f.Tag.Get(tagType))
		if typ == "" {
			typ = shape(f.Type, 0)
		}
		out = append(out, PromptField{
			Name:        name,
			Type:        typ,
			Required:    mode == "required" || (mode != "optional" && !omitEmpty),
			Description: strings.TrimSpace(f.Tag.Get(tagDesc)),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("llmtool: %s has no prompt fields", t)
	}
	return out, nil
}

// MustFieldsFromStruct is FieldsFromStruct for package-level prompt specs.
func MustFieldsFromStruct(v any) []PromptField {
	fields, err := FieldsFromStruct(v)
	if err != nil {
		panic(err)
	}
	return fields
}

func jsonName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "-" && opts == "" {
		return "", false
	}
	if name == "" {
		name = f.Name
	}
	return name, strings.Contains(","+opts+",", ",omitempty,")
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// shape spells a Go type the way the model should produce it in JSON.
func shape(t reflect.Type, depth int) string {
	t = deref(t)
	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		return "any"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "[]" + shape(t.Elem(), depth)
	case reflect.Map:
		return "map[" + shape(t.Key(), depth) + "]" + shape(t.Elem(), depth)
	case reflect.Struct:
		if depth >= maxShapeDepth {
			return "object"
		}
		var parts []string
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous || !f.IsExported() {
				continue
			}
			name, _ := jsonName(f)
			if name == "" || f.Tag.Get(tagPrompt) == "-" {
				continue
			}
			typ := f.Tag.Get(tagType)
			if typ == "" {
				typ = shape(f.Type, depth+1)
			}
			parts = append(parts, name+":"+typ)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "any"
}
