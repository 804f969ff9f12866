package catalog

import "slices"

// RequiredAssessments returns the ordered assessments a student enrolled in
// course for the given number of weeks must complete.
//
// The first bracket containing weeks wins. A duration past the last bracket
// requires the full course list. A duration below the first bracket, or an
// unknown course, requires nothing.
func (c *Catalog) RequiredAssessments(course string, weeks int) []string {
	crs, ok := c.courses[course]
	if !ok {
		return []string{}
	}

	maxWeeks := 0
	for _, b := range crs.Brackets {
		if b.Contains(weeks) {
			return slices.Clone(b.Assessments)
		}
		maxWeeks = max(maxWeeks, b.MaxWeeks)
	}

	if weeks > maxWeeks {
		return slices.Clone(crs.Assessments)
	}
	return []string{}
}

// Requires reports whether assessment is in the required set for course and weeks.
func (c *Catalog) Requires(course string, weeks int, assessment string) bool {
	return slices.Contains(c.RequiredAssessments(course, weeks), assessment)
}
