package ecs

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrNotScalar     = errors.New("field is not a scalar")
	ErrTypeMismatch  = errors.New("value type does not match field")
	errEmptySwizzle  = errors.New("empty swizzle")
	swizzleLaneNames = [2]string{"xyzw", "rgba"}
)

// FieldPath is a resolved dotted path into a Go type. Structs are walked by
// field name (or yaml tag), fixed-size arrays by index or swizzle.
type FieldPath struct {
	root      reflect.Type
	text      string
	canonical string
	steps     []int
	leaf  reflect.Type
	lanes []int
}

// Field describes a path into a registered component type.
type Field struct {
	FieldPath
	Component *ComponentType
}

// LookupPath resolves path against t. An empty path refers to the value itself.
func LookupPath(t reflect.Type, path string) (FieldPath, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	fp := FieldPath{root: t, text: path, leaf: t}
	if path == "" {
		return fp, nil
	}

	segments := strings.Split(path, ".")
	resolved := make([]string, 0, len(segments))
	for _, seg := range segments {
		if fp.lanes != nil {
			return FieldPath{}, fmt.Errorf("%w: %q continues after swizzle", ErrUnknownField, path)
		}
		switch fp.leaf.Kind() {
		case reflect.Struct:
			idx, ok := structFieldIndex(fp.leaf, seg)
			if !ok {
				return FieldPath{}, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, fp.leaf, seg)
			}
			fp.steps = append(fp.steps, idx)
			resolved = append(resolved, fieldName(fp.leaf.Field(idx)))
			fp.leaf = fp.leaf.Field(idx).Type

		case reflect.Array:
			if n, err := strconv.Atoi(seg); err == nil {
				if n < 0 || n >= fp.leaf.Len() {
					return FieldPath{}, fmt.Errorf("%w: index %d out of range for %s", ErrUnknownField, n, fp.leaf)
				}
				fp.steps = append(fp.steps, n)
				resolved = append(resolved, laneName(fp.leaf.Len(), n))
				fp.leaf = fp.leaf.Elem()
				continue
			}
			lanes, err := swizzle(seg, fp.leaf.Len())
			if err != nil {
				return FieldPath{}, fmt.Errorf("%w: %q: %w", ErrUnknownField, path, err)
			}
			if len(lanes) == 1 {
				fp.steps = append(fp.steps, lanes[0])
				resolved = append(resolved, laneName(fp.leaf.Len(), lanes[0]))
				fp.leaf = fp.leaf.Elem()
				continue
			}
			fp.lanes = lanes
			var sb strings.Builder
			for _, lane := range lanes {
				sb.WriteByte(swizzleLaneNames[0][lane])
			}
			resolved = append(resolved, sb.String())

		default:
			return FieldPath{}, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, fp.leaf, seg)
		}
	}
	fp.canonical = strings.Join(resolved, ".")
	return fp, nil
}

// fieldName is the spelling a struct field resolves to: its yaml tag, or
// the lower-cased Go name.
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(f.Name)
}

// laneName spells index i of an array of length n. Short arrays use xyzw.
func laneName(n, i int) string {
	if n <= len(swizzleLaneNames[0]) {
		return swizzleLaneNames[0][i : i+1]
	}
	return strconv.Itoa(i)
}

func structFieldIndex(t reflect.Type, name string) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag == name {
			return i, true
		}
		if strings.EqualFold(f.Name, name) {
			return i, true
		}
	}
	return 0, false
}

func swizzle(seg string, length int) ([]int, error) {
	if seg == "" {
		return nil, errEmptySwizzle
	}
	if len(seg) > 4 {
		return nil, fmt.Errorf("swizzle %q is longer than 4 lanes", seg)
	}
	for _, names := range swizzleLaneNames {
		lanes := make([]int, 0, len(seg))
		for _, r := range seg {
			lane := strings.IndexRune(names, r)
			if lane < 0 {
				break
			}
			if lane >= length {
				return nil, fmt.Errorf("swizzle lane %q out of range for length %d", r, length)
			}
			lanes = append(lanes, lane)
		}
		if len(lanes) == len(seg) {
			return lanes, nil
		}
	}
	return nil, fmt.Errorf("invalid swizzle %q", seg)
}

// String returns the path as it was written.
func (p FieldPath) String() string {
	return p.text
}

// Canonical returns the path spelled from the names it resolved to, so
// "Pose.Position.0" and "pose.position.x" have the same canonical form.
func (p FieldPath) Canonical() string {
	return p.canonical
}

// Scalar reports whether the path resolves to a single number or bool.
func (p FieldPath) Scalar() bool {
	return p.lanes == nil && isScalarKind(p.leaf.Kind())
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (p FieldPath) walk(v reflect.Value) (reflect.Value, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil value", ErrTypeMismatch)
		}
		v = v.Elem()
	}
	if v.Type() != p.root {
		return reflect.Value{}, fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, v.Type(), p.root)
	}
	for _, step := range p.steps {
		switch v.Kind() {
		case reflect.Struct:
			v = v.Field(step)
		case reflect.Array:
			v = v.Index(step)
		}
	}
	return v, nil
}

// ReadFloat reads the field out of value (a pointer to, or a copy of, the root type).
func (p FieldPath) ReadFloat(value any) (float64, error) {
	if !p.Scalar() {
		return 0, fmt.Errorf("%w: %q", ErrNotScalar, p.text)
	}
	v, err := p.walk(reflect.ValueOf(value))
	if err != nil {
		return 0, err
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	default:
		return v.Float(), nil
	}
}

// WriteFloat stores f into the field. value must be a pointer to the root type.
func (p FieldPath) WriteFloat(value any, f float64) error {
	if !p.Scalar() {
		return fmt.Errorf("%w: %q", ErrNotScalar, p.text)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer {
		return fmt.Errorf("%w: %T is not a pointer", ErrTypeMismatch, value)
	}
	v, err := p.walk(rv)
	if err != nil {
		return err
	}
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(f >= 0.5)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f < 0 {
			f = 0
		}
		v.SetUint(uint64(f))
	default:
		v.SetFloat(f)
	}
	return nil
}

// ReadPath resolves path against the runtime type of value and reads it.
func ReadPath(value any, path string) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("%w: nil value", ErrTypeMismatch)
	}
	fp, err := LookupPath(reflect.TypeOf(value), path)
	if err != nil {
		return 0, err
	}
	return fp.ReadFloat(value)
}
