package store

import "slices"

// SetOpKind selects the set primitive applied by a SetOp.
type SetOpKind int

const (
	AddToSet SetOpKind = iota + 1
	RemoveFromSet
)

func (k SetOpKind) String() string {
	switch k {
	case AddToSet:
		return "addToSet"
	case RemoveFromSet:
		return "removeFromSet"
	}
	return "unknown"
}

// SetOp is a conditional set-update on a string-array field: it adds or
// removes members without a full read-modify-write by the caller. Applying
// the same SetOp twice has the same effect as applying it once.
type SetOp struct {
	Field  string
	Kind   SetOpKind
	Values []string
}

// AddToSetOp builds an AddToSet operation.
func AddToSetOp(field string, values ...string) SetOp {
	return SetOp{Field: field, Kind: AddToSet, Values: values}
}

// RemoveFromSetOp builds a RemoveFromSet operation.
func RemoveFromSetOp(field string, values ...string) SetOp {
	return SetOp{Field: field, Kind: RemoveFromSet, Values: values}
}

// Apply returns the new members of the set after the operation.
// Existing order is preserved and added members are appended.
func (op SetOp) Apply(current []string) []string {
	out := slices.Clone(current)
	if out == nil {
		out = []string{}
	}
	switch op.Kind {
	case AddToSet:
		for _, v := range op.Values {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	case RemoveFromSet:
		out = slices.DeleteFunc(out, func(s string) bool {
			return slices.Contains(op.Values, s)
		})
	}
	return out
}
