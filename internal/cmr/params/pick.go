package params

// Pick returns a copy of s holding only the members named in allowed.
// Member order and values are kept; s itself is never modified.
func Pick(s *Set, allowed []string) *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	keep := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		keep[k] = struct{}{}
	}
	for _, m := range s.members {
		if _, ok := keep[m.Key]; !ok {
			continue
		}
		out.members = append(out.members, Member{Key: m.Key, Value: m.Value.Clone()})
	}
	return out
}
