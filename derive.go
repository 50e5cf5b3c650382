package zarr

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Load and Save derive directory-traversal logic for composite record types
// purely from their field names and declared types: a field of type *Array
// or *Group loads at the subdirectory named after the field, a nested struct
// field recurses, and no per-type traversal code is ever written.
//
// The struct tag `zarr:"name"` overrides the subdirectory name (the default
// is the lowercased field name), `zarr:"-"` skips a field, and the "inline"
// flag maps a nested struct onto the parent directory instead of its own
// subdirectory:
//
//	type Experiment struct {
//	    Raw    *Array `zarr:"raw"`
//	    Masks  *Group
//	    Calib  Calibration            // stored under "calib/"
//	    Extra  Extras `zarr:",inline"` // stored in the parent directory
//	}
//
// Both operations are fail-fast: the first failing field aborts the rest.

var (
	arrayPtrType = reflect.TypeOf((*Array)(nil))
	groupPtrType = reflect.TypeOf((*Group)(nil))
)

// Load populates rec, a pointer to a composite record struct, from the
// directory hierarchy rooted at dir.
func Load(ctx context.Context, store Store, dir string, rec any) error {
	rv := reflect.ValueOf(rec)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: want pointer to struct, got %T", ErrDerivation, rec)
	}
	return loadStruct(ctx, store, dir, rv.Elem())
}

func loadStruct(ctx context.Context, store Store, dir string, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name, inline, skip := fieldName(field)
		if skip || !field.IsExported() {
			continue
		}

		sub := store.Join(dir, name)
		if inline {
			sub = dir
		}

		switch {
		case field.Type == arrayPtrType:
			a, err := Open(ctx, store, sub)
			if err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
			rv.Field(i).Set(reflect.ValueOf(a))

		case field.Type == groupPtrType:
			g, err := OpenGroup(ctx, store, sub)
			if err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
			rv.Field(i).Set(reflect.ValueOf(g))

		case field.Type.Kind() == reflect.Struct:
			if err := loadStruct(ctx, store, sub, rv.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}

		case field.Type.Kind() == reflect.Pointer && field.Type.Elem().Kind() == reflect.Struct:
			p := reflect.New(field.Type.Elem())
			if err := loadStruct(ctx, store, sub, p.Elem()); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
			rv.Field(i).Set(p)

		default:
			return fmt.Errorf("%w: field %s has unsupported type %s", ErrDerivation, field.Name, field.Type)
		}
	}
	return nil
}

// Save persists rec, a composite record struct or pointer to one, to the
// directory hierarchy rooted at dir.
func Save(ctx context.Context, store Store, dir string, rec any, opts ...SaveOption) error {
	rv := reflect.ValueOf(rec)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil record", ErrDerivation)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: want struct, got %T", ErrDerivation, rec)
	}
	return saveStruct(ctx, store, dir, rv, opts)
}

func saveStruct(ctx context.Context, store Store, dir string, rv reflect.Value, opts []SaveOption) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name, inline, skip := fieldName(field)
		if skip || !field.IsExported() {
			continue
		}

		sub := store.Join(dir, name)
		if inline {
			sub = dir
		}

		switch {
		case field.Type == arrayPtrType:
			a, ok := rv.Field(i).Interface().(*Array)
			if !ok || a == nil {
				return fmt.Errorf("%w: field %s is nil", ErrDerivation, field.Name)
			}
			if err := a.Save(ctx, store, sub, opts...); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}

		case field.Type == groupPtrType:
			g, ok := rv.Field(i).Interface().(*Group)
			if !ok || g == nil {
				return fmt.Errorf("%w: field %s is nil", ErrDerivation, field.Name)
			}
			if err := g.Save(ctx, store, sub, opts...); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}

		case field.Type.Kind() == reflect.Struct:
			if err := saveStruct(ctx, store, sub, rv.Field(i), opts); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}

		case field.Type.Kind() == reflect.Pointer && field.Type.Elem().Kind() == reflect.Struct:
			if rv.Field(i).IsNil() {
				return fmt.Errorf("%w: field %s is nil", ErrDerivation, field.Name)
			}
			if err := saveStruct(ctx, store, sub, rv.Field(i).Elem(), opts); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}

		default:
			return fmt.Errorf("%w: field %s has unsupported type %s", ErrDerivation, field.Name, field.Type)
		}
	}
	return nil
}

// fieldName resolves a field's subdirectory name from its zarr struct tag.
func fieldName(field reflect.StructField) (name string, inline, skip bool) {
	tag := field.Tag.Get("zarr")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	for _, flag := range parts[1:] {
		if flag == "inline" {
			inline = true
		}
	}
	return name, inline, false
}
