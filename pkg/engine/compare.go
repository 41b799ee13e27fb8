package engine

// Field paths used in Change.Path.
const (
	FieldName        = "name"
	FieldURLValues   = "url_value"
	FieldType        = "type"
	FieldDescription = "description"
)

// Equal reports whether two objects have identical tracked fields.
// URL values are compared as an ordered sequence; an empty type equals URL List.
func Equal(a, b CustomURLCategory) bool {
	return a.Name == b.Name &&
		urlValuesEqual(a.URLValues, b.URLValues) &&
		a.Type.Normalize() == b.Type.Normalize() &&
		a.Description == b.Description
}

func urlValuesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ComputeChanges lists the tracked fields that differ between before and after.
// A nil before means the object is created; a nil after means it is deleted.
func ComputeChanges(before, after *CustomURLCategory) []Change {
	switch {
	case before == nil && after == nil:
		return nil
	case before == nil:
		return fieldChanges(nil, after, ChangeActionAdd)
	case after == nil:
		return fieldChanges(before, nil, ChangeActionRemove)
	default:
		return fieldChanges(before, after, ChangeActionModify)
	}
}

func fieldChanges(before, after *CustomURLCategory, action ChangeAction) []Change {
	var b, a CustomURLCategory
	if before != nil {
		b = before.Normalized()
	}
	if after != nil {
		a = after.Normalized()
	}

	changes := make([]Change, 0, 4)
	add := func(path string, bv, av interface{}, differ bool) {
		if action == ChangeActionModify && !differ {
			return
		}
		c := Change{Path: path, Action: action}
		if before != nil {
			c.Before = bv
		}
		if after != nil {
			c.After = av
		}
		changes = append(changes, c)
	}

	add(FieldName, b.Name, a.Name, b.Name != a.Name)
	add(FieldURLValues, b.URLValues, a.URLValues, !urlValuesEqual(b.URLValues, a.URLValues))
	add(FieldType, b.Type, a.Type, b.Type != a.Type)
	if action != ChangeActionModify && b.Description == "" && a.Description == "" {
		return changes
	}
	add(FieldDescription, b.Description, a.Description, b.Description != a.Description)
	return changes
}

// findByName returns the entry named name, or nil.
func findByName(listing []CustomURLCategory, name string) *CustomURLCategory {
	for i := range listing {
		if listing[i].Name == name {
			found := listing[i].Clone()
			return &found
		}
	}
	return nil
}
