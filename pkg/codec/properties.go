package codec

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// TagName is the struct tag that names an authoring property.
const TagName = "prop"

// Property is one named authoring value of a node. Values are plain data
// (string, bool, int, float64, []any, map[string]any) so a property bag
// survives JSON and YAML unchanged.
type Property struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

var (
	assetType    = reflect.TypeOf(domain.AssetRef{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// EncodeProperties walks the exported fields of a node payload in declaration
// order. Asset references are written as their path and durations as strings.
func EncodeProperties(data domain.NodeData) ([]Property, error) {
	if data == nil {
		return nil, fmt.Errorf("nil node data")
	}
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil %s data", data.Kind())
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s data is not a struct", data.Kind())
	}

	t := v.Type()
	props := make([]Property, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, ok := propName(t.Field(i))
		if !ok {
			continue
		}
		val, err := encodeValue(v.Field(i))
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props = append(props, Property{Name: name, Value: val})
	}
	return props, nil
}

func propName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get(TagName)
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return strings.ToLower(f.Name), true
}

func encodeValue(v reflect.Value) (any, error) {
	switch v.Type() {
	case assetType:
		return v.Interface().(domain.AssetRef).AssetPath(), nil
	case durationType:
		return time.Duration(v.Int()).String(), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			item, err := encodeValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			name, ok := propName(v.Type().Field(i))
			if !ok {
				continue
			}
			item, err := encodeValue(v.Field(i))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[name] = item
		}
		return out, nil
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return encodeValue(v.Elem())
	default:
		return nil, fmt.Errorf("unsupported property type %s", v.Type())
	}
}

// DecodeProperties builds a fresh payload of the given kind from a property
// bag. Unknown properties are ignored so stale documents still load.
func DecodeProperties(kind domain.NodeKind, props []Property) (domain.NodeData, error) {
	data, err := domain.NewData(kind)
	if err != nil {
		return nil, err
	}
	input := make(map[string]any, len(props))
	for _, p := range props {
		input[p.Name] = p.Value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          TagName,
		WeaklyTypedInput: true,
		Result:           data,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToAssetHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("failed to decode %s properties: %w", kind, err)
	}
	return data, nil
}

func stringToAssetHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != assetType || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.Asset(data.(string)), nil
}

// CloneData returns an independent copy of a payload.
func CloneData(data domain.NodeData) (domain.NodeData, error) {
	props, err := EncodeProperties(data)
	if err != nil {
		return nil, err
	}
	return DecodeProperties(data.Kind(), props)
}
