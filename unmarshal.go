package appledesc

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var valueType = reflect.TypeOf(Value{})

// Unmarshal stores the decoded value v in the value pointed to by out.
//
// Struct fields are matched against mapping keys using struct tags:
//   - `desc:"IOClass"` - maps key "IOClass" to this field
//   - `desc:"retain,omitempty"` - skips empty values
//   - `desc:"id,required"` - fails when the key is missing
//   - `desc:"-"` - ignores this field
//
// Untagged fields match a key equal to the field name, then any key equal
// to it ignoring case. Integers accept the 0x prefix used for registry ids;
// flags fill bool fields; a field of type Value receives the raw value.
//
// Example:
//
//	type Entry struct {
//	    Class      string `desc:"class"`
//	    ID         uint64 `desc:"id"`
//	    Registered bool   `desc:"registered"`
//	    Retain     int    `desc:"retain"`
//	}
func Unmarshal(v Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("unmarshal target must be a non-nil pointer")
	}
	return setField(rv.Elem(), v)
}

// UnmarshalNode unmarshals the node's metadata into out.
func UnmarshalNode(n *Node, out any) error {
	return Unmarshal(MappingValue(n.Metadata), out)
}

// Interface converts v to plain Go values: string, bool for flags, []any
// and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindSequence:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindMapping:
		out := make(map[string]any, v.m.Len())
		for _, e := range v.m.entries {
			out[e.Key] = e.Value.Interface()
		}
		return out
	default:
		if v.flag {
			return v.text == "true"
		}
		return v.text
	}
}

// unmarshalStruct fills the fields of a struct from a mapping.
func unmarshalStruct(m *Mapping, v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		tag := field.Tag.Get("desc")
		if tag == "-" {
			continue
		}

		tagName, opts := parseTag(tag)
		var (
			value Value
			ok    bool
		)
		if tagName != "" {
			value, ok = m.Get(tagName)
		} else {
			tagName = field.Name
			value, ok = lookupFold(m, field.Name)
		}
		if !ok {
			if hasOption(opts, "required") {
				return fmt.Errorf("required field %s not found", tagName)
			}
			continue
		}

		if hasOption(opts, "omitempty") && isEmpty(value) {
			continue
		}

		if err := setField(fieldValue, value); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

func lookupFold(m *Mapping, name string) (Value, bool) {
	if v, ok := m.Get(name); ok {
		return v, true
	}
	for _, e := range m.Entries() {
		if strings.EqualFold(e.Key, name) {
			return e.Value, true
		}
	}
	return Value{}, false
}

// setField sets a reflect.Value from a decoded value.
func setField(field reflect.Value, value Value) error {
	if field.Type() == valueType {
		field.Set(reflect.ValueOf(value))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		return setString(field, value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setInt(field, value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return setUint(field, value)
	case reflect.Float32, reflect.Float64:
		return setFloat(field, value)
	case reflect.Bool:
		return setBool(field, value)
	case reflect.Slice:
		return setSlice(field, value)
	case reflect.Map:
		return setMap(field, value)
	case reflect.Struct:
		return setStruct(field, value)
	case reflect.Ptr:
		return setPointer(field, value)
	case reflect.Interface:
		field.Set(reflect.ValueOf(value.Interface()))
		return nil
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
}

func scalarText(value Value, want string) (string, error) {
	if value.kind != KindScalar {
		return "", fmt.Errorf("cannot convert %s to %s", value.kind, want)
	}
	return value.text, nil
}

func setString(field reflect.Value, value Value) error {
	if value.kind == KindScalar {
		field.SetString(value.text)
		return nil
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return err
	}
	field.SetString(string(data))
	return nil
}

func setInt(field reflect.Value, value Value) error {
	s, err := scalarText(value, "int")
	if err != nil {
		return err
	}
	i, err := strconv.ParseInt(s, 0, field.Type().Bits())
	if err != nil {
		return fmt.Errorf("cannot parse as int: %w", err)
	}
	field.SetInt(i)
	return nil
}

func setUint(field reflect.Value, value Value) error {
	s, err := scalarText(value, "uint")
	if err != nil {
		return err
	}
	i, err := strconv.ParseUint(s, 0, field.Type().Bits())
	if err != nil {
		return fmt.Errorf("cannot parse as uint: %w", err)
	}
	field.SetUint(i)
	return nil
}

func setFloat(field reflect.Value, value Value) error {
	s, err := scalarText(value, "float")
	if err != nil {
		return err
	}
	f, err := strconv.ParseFloat(s, field.Type().Bits())
	if err != nil {
		return fmt.Errorf("cannot parse as float: %w", err)
	}
	field.SetFloat(f)
	return nil
}

func setBool(field reflect.Value, value Value) error {
	s, err := scalarText(value, "bool")
	if err != nil {
		return err
	}
	b, err := parseBool(s)
	if err != nil {
		return fmt.Errorf("cannot parse as bool: %w", err)
	}
	field.SetBool(b)
	return nil
}

func setSlice(field reflect.Value, value Value) error {
	items := value.items
	switch value.kind {
	case KindSequence:
	case KindScalar:
		if value.text == "" {
			field.Set(reflect.MakeSlice(field.Type(), 0, 0))
			return nil
		}
		items = []Value{value}
	default:
		return fmt.Errorf("cannot convert %s to slice", value.kind)
	}
	slice := reflect.MakeSlice(field.Type(), len(items), len(items))
	for i, item := range items {
		if err := setField(slice.Index(i), item); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	field.Set(slice)
	return nil
}

func setMap(field reflect.Value, value Value) error {
	if value.kind != KindMapping {
		return fmt.Errorf("cannot convert %s to map", value.kind)
	}
	if field.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("map key must be string, got %s", field.Type().Key())
	}
	m := reflect.MakeMapWithSize(field.Type(), value.m.Len())
	for _, e := range value.m.entries {
		elemValue := reflect.New(field.Type().Elem()).Elem()
		if err := setField(elemValue, e.Value); err != nil {
			return fmt.Errorf("key %s: %w", e.Key, err)
		}
		m.SetMapIndex(reflect.ValueOf(e.Key).Convert(field.Type().Key()), elemValue)
	}
	field.Set(m)
	return nil
}

func setStruct(field reflect.Value, value Value) error {
	if value.kind != KindMapping {
		return fmt.Errorf("cannot convert %s to struct", value.kind)
	}
	return unmarshalStruct(value.m, field)
}

func setPointer(field reflect.Value, value Value) error {
	ptr := reflect.New(field.Type().Elem())
	if err := setField(ptr.Elem(), value); err != nil {
		return err
	}
	field.Set(ptr)
	return nil
}

func parseTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return parts[0], parts[1:]
}

func hasOption(opts []string, option string) bool {
	for _, opt := range opts {
		if opt == option {
			return true
		}
	}
	return false
}

func isEmpty(value Value) bool {
	switch value.kind {
	case KindScalar:
		return value.text == "" || (value.flag && value.text == "false")
	default:
		return value.Len() == 0
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value: %s", s)
	}
}
