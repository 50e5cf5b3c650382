package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// groupDoc is the .zgroup marker document.
type groupDoc struct {
	ZarrFormat int `json:"zarr_format"`
}

// Group is a named, directory-like container of child arrays and nested
// groups. A prefix is a group iff it carries a .zgroup marker.
type Group struct {
	attrs  Attrs
	arrays map[string]*Array
	groups map[string]*Group
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{
		arrays: map[string]*Array{},
		groups: map[string]*Group{},
	}
}

// SetArray adds or replaces a child array.
func (g *Group) SetArray(name string, a *Array) { g.arrays[name] = a }

// SetGroup adds or replaces a child group.
func (g *Group) SetGroup(name string, child *Group) { g.groups[name] = child }

// Array returns the child array with the given name, or nil.
func (g *Group) Array(name string) *Array { return g.arrays[name] }

// Group returns the child group with the given name, or nil.
func (g *Group) Group(name string) *Group { return g.groups[name] }

// Attrs returns the group's user attributes, nil if none.
func (g *Group) Attrs() Attrs { return g.attrs }

// SetAttrs replaces the group's user attributes.
func (g *Group) SetAttrs(attrs Attrs) { g.attrs = attrs }

// Children returns the sorted names of all child arrays and groups. Child
// ordering carries no significance; sorting just makes the result stable.
func (g *Group) Children() []string {
	names := make([]string, 0, len(g.arrays)+len(g.groups))
	for name := range g.arrays {
		names = append(names, name)
	}
	for name := range g.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenGroup reads a group and, recursively, all of its children from the
// store. A prefix without a .zgroup marker is not a group.
func OpenGroup(ctx context.Context, store Store, path string) (*Group, error) {
	docBytes, err := store.ReadBytes(ctx, store.Join(path, GroupKey))
	if err != nil {
		return nil, fmt.Errorf("opening group at %q: %w", path, err)
	}
	var doc groupDoc
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid group document at %q: %v", ErrMetadataParse, path, err)
	}
	if doc.ZarrFormat != FormatVersion {
		return nil, fmt.Errorf("%w: zarr_format %d, expected %d", ErrMetadataParse, doc.ZarrFormat, FormatVersion)
	}

	g := NewGroup()

	attrBytes, err := store.ReadBytes(ctx, store.Join(path, AttrsKey))
	switch {
	case err == nil:
		if err := json.Unmarshal(attrBytes, &g.attrs); err != nil {
			return nil, fmt.Errorf("%w: invalid attributes at %q: %v", ErrMetadataParse, path, err)
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	children, err := store.List(ctx, path)
	if err != nil {
		return nil, err
	}
	for _, name := range children {
		childPath := store.Join(path, name)

		isArray, err := store.Exists(ctx, store.Join(childPath, MetadataKey))
		if err != nil {
			return nil, err
		}
		if isArray {
			a, err := Open(ctx, store, childPath)
			if err != nil {
				return nil, err
			}
			g.arrays[name] = a
			continue
		}

		isGroup, err := store.Exists(ctx, store.Join(childPath, GroupKey))
		if err != nil {
			return nil, err
		}
		if isGroup {
			child, err := OpenGroup(ctx, store, childPath)
			if err != nil {
				return nil, err
			}
			g.groups[name] = child
		}
		// Prefixes that are neither arrays nor groups are ignored.
	}

	return g, nil
}

// Save persists the group: all children recursively, then the .zgroup
// marker and, if set, the attributes document.
func (g *Group) Save(ctx context.Context, store Store, path string, opts ...SaveOption) error {
	for name, a := range g.arrays {
		if err := a.Save(ctx, store, store.Join(path, name), opts...); err != nil {
			return fmt.Errorf("saving array %q: %w", name, err)
		}
	}
	for name, child := range g.groups {
		if err := child.Save(ctx, store, store.Join(path, name), opts...); err != nil {
			return fmt.Errorf("saving group %q: %w", name, err)
		}
	}

	docBytes, err := json.Marshal(groupDoc{ZarrFormat: FormatVersion})
	if err != nil {
		return fmt.Errorf("encoding group document: %w", err)
	}
	if err := store.WriteBytes(ctx, store.Join(path, GroupKey), docBytes); err != nil {
		return err
	}

	if len(g.attrs) > 0 {
		attrBytes, err := json.Marshal(g.attrs)
		if err != nil {
			return fmt.Errorf("encoding attributes: %w", err)
		}
		if err := store.WriteBytes(ctx, store.Join(path, AttrsKey), attrBytes); err != nil {
			return err
		}
	}
	return nil
}
