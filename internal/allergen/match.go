package allergen

import "strings"

// Find returns the selected allergens that occur in text, in selection
// order. Matching is a case-insensitive substring test, so "Milk" also
// flags "Buttermilk". Blank and repeated selections are ignored.
func Find(text string, selected []string) []string {
	if text == "" || len(selected) == 0 {
		return nil
	}

	haystack := strings.ToLower(text)
	var found []string
	seen := make(map[string]bool)
	for _, name := range selected {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" || seen[needle] {
			continue
		}
		seen[needle] = true
		if strings.Contains(haystack, needle) {
			found = append(found, strings.TrimSpace(name))
		}
	}
	return found
}

// Flag expands selection against the catalog and returns the matches in
// text. A nil catalog matches the selection as given.
func Flag(c *Catalog, text string, selection []string) []string {
	if c != nil {
		selection = c.Expand(selection)
	}
	return Find(text, selection)
}
