package depot

import (
	"reflect"
	"strconv"
	"strings"
)

// ApplyValue copies src onto dst, which must be settable. Besides plain assignment it accepts:
//   - numbers of any kind for numeric fields, converted when the value fits
//   - structs or map[string]any for structs, matched by field name or yaml tag; unknown keys
//     are ignored and fields absent from src keep their value
//   - slices and arrays for slices and arrays of the same length
//   - maps, whose entries are added or updated but never deleted
//
// This is the shape data decoded by generic serializers arrives in.
func ApplyValue(dst reflect.Value, src any) error {
	v, ok := src.(reflect.Value)
	if !ok {
		v = reflect.ValueOf(src)
	}
	return applyValue(dst, v, "")
}

func applyValue(dst, src reflect.Value, path string) error {
	for src.IsValid() && (src.Kind() == reflect.Interface || src.Kind() == reflect.Pointer) {
		if src.IsNil() {
			break
		}
		if src.Type().AssignableTo(dst.Type()) {
			break
		}
		src = src.Elem()
	}
	if !src.IsValid() {
		return ApplyError{Path: path, Target: dst.Type()}
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		if src.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}
	case reflect.String:
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		if isNumber(src.Kind()) {
			return applyNumber(dst, src, path)
		}
	case reflect.Struct:
		return applyStruct(dst, src, path)
	case reflect.Slice:
		if src.Kind() == reflect.Slice || src.Kind() == reflect.Array {
			out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
			for i := range src.Len() {
				if err := applyValue(out.Index(i), src.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Array:
		if (src.Kind() == reflect.Slice || src.Kind() == reflect.Array) && src.Len() == dst.Len() {
			for i := range src.Len() {
				if err := applyValue(dst.Index(i), src.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
			return nil
		}
	case reflect.Map:
		if src.Kind() == reflect.Map {
			return applyMap(dst, src, path)
		}
	case reflect.Pointer:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return applyValue(dst.Elem(), src, path)
	}
	return ApplyError{Path: path, Target: dst.Type(), Source: src.Type()}
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

func applyNumber(dst, src reflect.Value, path string) error {
	unsigned := dst.Kind() >= reflect.Uint && dst.Kind() <= reflect.Uintptr
	negative := (src.CanInt() && src.Int() < 0) || (src.CanFloat() && src.Float() < 0)
	if unsigned && negative {
		return ApplyError{Path: path, Target: dst.Type(), Source: src.Type()}
	}
	converted := src.Convert(dst.Type())
	if !converted.Convert(src.Type()).Equal(src) {
		return ApplyError{Path: path, Target: dst.Type(), Source: src.Type()}
	}
	dst.Set(converted)
	return nil
}

func applyStruct(dst, src reflect.Value, path string) error {
	switch src.Kind() {
	case reflect.Struct:
		for i := range src.NumField() {
			field := src.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			target, ok := structField(dst, field.Name)
			if !ok {
				continue
			}
			if err := applyValue(target, src.Field(i), joinPath(path, field.Name)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if src.Type().Key().Kind() != reflect.String {
			break
		}
		iter := src.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			target, ok := structField(dst, key)
			if !ok {
				continue
			}
			if err := applyValue(target, iter.Value(), joinPath(path, key)); err != nil {
				return err
			}
		}
		return nil
	}
	return ApplyError{Path: path, Target: dst.Type(), Source: src.Type()}
}

// structField finds the settable field of v called name, by Go name, yaml tag or
// case-insensitive Go name, in that order.
func structField(v reflect.Value, name string) (reflect.Value, bool) {
	typ := v.Type()
	if f, ok := typ.FieldByName(name); ok && f.IsExported() {
		return v.FieldByIndex(f.Index), true
	}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if tag == name || (tag == "" && strings.EqualFold(f.Name, name)) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func applyMap(dst, src reflect.Value, path string) error {
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
	}
	keyType, elemType := dst.Type().Key(), dst.Type().Elem()
	iter := src.MapRange()
	for iter.Next() {
		key := reflect.New(keyType).Elem()
		if err := applyValue(key, iter.Key(), path); err != nil {
			return err
		}
		elem := reflect.New(elemType).Elem()
		if existing := dst.MapIndex(key); existing.IsValid() {
			elem.Set(existing)
		}
		if err := applyValue(elem, iter.Value(), path+"["+key.String()+"]"); err != nil {
			return err
		}
		dst.SetMapIndex(key, elem)
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
