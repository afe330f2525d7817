package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated list of fields, each optionally prefixed with "-" for a
// descending order. Fields missing from `allowed` are dropped; `allowed` maps public names to columns.
func ParseOrdering(s string, allowed map[string]string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := allowed[field]
		if !ok {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: col, Ascending: !descending})
	}
	return orderings
}
