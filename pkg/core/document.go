package core

// Document is a parsed configuration document: string keys mapping to scalars,
// nested documents, or ordered sequences of the same.
type Document map[string]any

// Clone returns a deep copy of the document. Scalars are shared, maps and
// slices are copied.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneMap(d)
}

// Get returns the value stored under key, or nil.
func (d Document) Get(key string) any {
	if d == nil {
		return nil
	}
	return d[key]
}

// Map returns the nested mapping stored under key.
func (d Document) Map(key string) (Document, bool) {
	switch v := d.Get(key).(type) {
	case Document:
		return v, true
	case map[string]any:
		return Document(v), true
	}
	return nil, false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices found in v.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return Document(cloneMap(val))
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
