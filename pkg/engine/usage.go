package engine

// ClassifyUsage tags each reference INTERNAL when it points at a component
// in owned, EXTERNAL otherwise. The input order is kept.
func ClassifyUsage(refs []UsageReference, owned []ComponentKey) []ClassifiedReference {
	index := make(map[ComponentKey]struct{}, len(owned))
	for _, key := range owned {
		index[key] = struct{}{}
	}

	out := make([]ClassifiedReference, 0, len(refs))
	for _, ref := range refs {
		refType := ReferenceExternal
		if _, ok := index[ComponentKey{Type: ref.ComponentType, Name: ref.Code}]; ok {
			refType = ReferenceInternal
		}
		out = append(out, ClassifiedReference{UsageReference: ref, Type: refType})
	}
	return out
}
