package cmd

import "strings"

// levenshtein computes the Levenshtein edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use a single row plus a prev value to reduce allocation.
	row := make([]int, lb+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= la; i++ {
		prev := i - 1
		row[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			val := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = val
		}
	}
	return row[lb]
}

// suggestName finds the closest name to the unknown input.
// Returns empty string if no close match (distance > 3).
func suggestName(unknown string, names []string) string {
	unknown = strings.ToLower(unknown)
	bestDist := 4 // threshold: only suggest if distance <= 3
	bestMatch := ""
	for _, name := range names {
		d := levenshtein(unknown, strings.ToLower(name))
		if d < bestDist {
			bestDist = d
			bestMatch = name
		}
	}
	return bestMatch
}
