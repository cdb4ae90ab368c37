// Package pgtree traverses and rewrites pg_query parse trees.
//
// pg_query represents PostgreSQL parse trees as protobuf messages. Instead of a
// type switch per node kind, the functions here walk every message-typed field
// through protobuf reflection, so a visitor sees each node in the tree
// regardless of where the grammar puts it.
package pgtree

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ErrTypeMismatch is returned when a visitor replaces a node with a message of
// a different type than the field holding it.
var ErrTypeMismatch = errors.New("replacement type does not match field type")

// Visitor is applied to every message reachable from the root. It returns the
// message to keep in place of msg: msg itself (possibly mutated) or a
// replacement of the same type. A nil result leaves msg in place.
type Visitor func(msg proto.Message) (proto.Message, error)

// Transform applies fn to root and, in pre-order, to every message reachable
// from the result. Children are visited in field declaration order and list
// elements in index order, so traversal order is stable for a given tree.
//
// Traversal descends into whatever fn returned, including subtrees fn has just
// spliced in. The tree is modified in place; the returned message is the new
// root.
func Transform(root proto.Message, fn Visitor) (proto.Message, error) {
	if root == nil {
		return nil, nil
	}
	out, err := transform(root.ProtoReflect(), fn)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func transform(m protoreflect.Message, fn Visitor) (protoreflect.Message, error) {
	replaced, err := fn(m.Interface())
	if err != nil {
		return nil, err
	}
	if replaced != nil {
		m = replaced.ProtoReflect()
	}

	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Message() == nil || fd.IsMap() || !m.Has(fd) {
			continue
		}

		if fd.IsList() {
			list := m.Mutable(fd).List()
			for j := 0; j < list.Len(); j++ {
				child := list.Get(j).Message()
				next, err := transform(child, fn)
				if err != nil {
					return nil, err
				}
				if next.Interface() == child.Interface() {
					continue
				}
				if err := checkType(fd, next); err != nil {
					return nil, err
				}
				list.Set(j, protoreflect.ValueOfMessage(next))
			}
			continue
		}

		child := m.Get(fd).Message()
		next, err := transform(child, fn)
		if err != nil {
			return nil, err
		}
		if next.Interface() == child.Interface() {
			continue
		}
		if err := checkType(fd, next); err != nil {
			return nil, err
		}
		m.Set(fd, protoreflect.ValueOfMessage(next))
	}

	return m, nil
}

func checkType(fd protoreflect.FieldDescriptor, m protoreflect.Message) error {
	want := fd.Message().FullName()
	if got := m.Descriptor().FullName(); got != want {
		return fmt.Errorf("field %s: got %s, want %s: %w", fd.FullName(), got, want, ErrTypeMismatch)
	}
	return nil
}

// Walk calls fn for root and every message reachable from it, in the same
// order as Transform. When fn returns false the children of that message are
// skipped. Walk never modifies the tree.
func Walk(root proto.Message, fn func(msg proto.Message) bool) {
	if root == nil {
		return
	}
	walk(root.ProtoReflect(), fn)
}

func walk(m protoreflect.Message, fn func(proto.Message) bool) {
	if !fn(m.Interface()) {
		return
	}

	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Message() == nil || fd.IsMap() || !m.Has(fd) {
			continue
		}

		if fd.IsList() {
			list := m.Get(fd).List()
			for j := 0; j < list.Len(); j++ {
				walk(list.Get(j).Message(), fn)
			}
			continue
		}
		walk(m.Get(fd).Message(), fn)
	}
}
