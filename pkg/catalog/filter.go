package catalog

// FilterByMinStars keeps skills with at least min stars, preserving order.
// A floor of zero or less keeps everything.
func FilterByMinStars(skills []Skill, min int) []Skill {
	if min <= 0 {
		return skills
	}

	filtered := make([]Skill, 0, len(skills))
	for _, s := range skills {
		if s.Stars >= min {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// DedupeByName splits the listing into unique skills and duplicates. Skill
// names are the destination directory names, so concurrent workers must never
// see two entries with the same name. The first occurrence wins; order is
// preserved, so the split is deterministic for a given listing.
func DedupeByName(skills []Skill) (unique []Skill, duplicates []Skill) {
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if _, ok := seen[s.Name]; ok {
			duplicates = append(duplicates, s)
			continue
		}
		seen[s.Name] = struct{}{}
		unique = append(unique, s)
	}
	return unique, duplicates
}
