package core

import "strings"

// DBOrdering is a single "ORDER BY" term.
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

// ParseOrderings parses a comma separated list of fields, e.g. "name,-created_at".
// A leading "-" means descending.
func ParseOrderings(s string) []DBOrdering {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	var ords []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ords = append(ords, DBOrdering{Field: field, Ascending: !descending})
	}
	return ords
}

// CleanOrderings drops the orderings whose field is not allowed.
// It is the only thing standing between user input and an "ORDER BY" clause.
func CleanOrderings(ords []DBOrdering, allowed ...string) []DBOrdering {
	if len(ords) == 0 {
		return nil
	}
	clean := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		for _, field := range allowed {
			if ord.Field == field {
				clean = append(clean, ord)
				break
			}
		}
	}
	return clean
}
