package query

// Field names a record field kept by Select, optionally under another name.
type Field struct {
	Name string
	As   string
}

// Pick keeps a field under its own name.
func Pick(name string) Field {
	return Field{Name: name}
}

// Rename keeps a field under a new name.
func Rename(name, as string) Field {
	return Field{Name: name, As: as}
}

// Select returns a projection keeping only the given fields. Fields missing
// from a record are left out of the result.
func Select(fields ...Field) ProjectFunc {
	return func(record, _ any) (any, error) {
		return pick(record, fields), nil
	}
}

// SelectWithRelation is Select that also stores the related record under as.
// Nothing is stored when the relation found no record.
func SelectWithRelation(as string, fields ...Field) ProjectFunc {
	return func(record, related any) (any, error) {
		out := pick(record, fields)
		if related != nil {
			out[as] = related
		}
		return out, nil
	}
}

func pick(record any, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	obj, ok := record.(map[string]any)
	if !ok {
		return out
	}

	for _, f := range fields {
		value, present := obj[f.Name]
		if !present {
			continue
		}
		key := f.As
		if key == "" {
			key = f.Name
		}
		out[key] = value
	}
	return out
}

// Merge returns a projection keeping every field of the record and storing
// the related record under as. Non-object records pass through unchanged.
func Merge(as string) ProjectFunc {
	return func(record, related any) (any, error) {
		obj, ok := record.(map[string]any)
		if !ok {
			return record, nil
		}

		out := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			out[k] = v
		}
		if related != nil {
			out[as] = related
		}
		return out, nil
	}
}
