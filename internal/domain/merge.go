package domain

// Entity is one {value, synonyms} entry of a Dialogflow map entity type
type Entity struct {
	Value    string   `json:"value" bson:"value"`
	Synonyms []string `json:"synonyms" bson:"synonyms"`
}

// MergeEntities folds incoming into existing. Unknown values are appended, known values
// get the union of both synonym lists. Nothing is ever removed and existing is not modified.
func MergeEntities(existing, incoming []Entity) []Entity {
	merged := make([]Entity, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	for _, e := range existing {
		if i, ok := index[e.Value]; ok {
			merged[i].Synonyms = unionStrings(merged[i].Synonyms, e.Synonyms)
			continue
		}
		index[e.Value] = len(merged)
		merged = append(merged, Entity{Value: e.Value, Synonyms: unionStrings(nil, e.Synonyms)})
	}

	for _, e := range incoming {
		if i, ok := index[e.Value]; ok {
			merged[i].Synonyms = unionStrings(merged[i].Synonyms, e.Synonyms)
			continue
		}
		index[e.Value] = len(merged)
		merged = append(merged, Entity{Value: e.Value, Synonyms: unionStrings(nil, e.Synonyms)})
	}

	return merged
}

// RemoveEntity returns entities without value. The second result is false when value
// was not present.
func RemoveEntity(entities []Entity, value string) ([]Entity, bool) {
	out := make([]Entity, 0, len(entities))
	removed := false
	for _, e := range entities {
		if e.Value == value {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

// unionStrings appends the members of add missing from base, keeping order
func unionStrings(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, s := range base {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// StringSetDifference returns the members of a that are not in b, in a's order and
// without duplicates
func StringSetDifference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, s := range b {
		exclude[s] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		if _, ok := exclude[s]; ok {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
