// Package catalog holds the static assessment catalog: which courses exist,
// the ordered assessments of each course, and the duration brackets that
// decide which of them a student has to sit.
//
// A Catalog is immutable once built. Every accessor returns copies, so a
// single instance can be shared by any number of goroutines.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// ValidationError lists every problem found in a catalog document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid catalog: %s", strings.Join(e.Problems, "; "))
}

// Catalog is a validated, read-only assessment catalog.
type Catalog struct {
	order   []string
	courses map[string]Course
	names   []string
	folded  map[string]string
}

// New validates doc and builds a Catalog from it.
func New(doc Document) (*Catalog, error) {
	if problems := check(doc); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	c := &Catalog{
		order:   slices.Clone(doc.Assessments),
		courses: make(map[string]Course, len(doc.Courses)),
		folded:  make(map[string]string, len(doc.Courses)),
	}
	for _, course := range doc.Courses {
		c.courses[course.Name] = cloneCourse(course)
		c.names = append(c.names, course.Name)
		c.folded[foldName(course.Name)] = course.Name
	}
	return c, nil
}

// Courses returns the course names in document order.
func (c *Catalog) Courses() []string {
	return slices.Clone(c.names)
}

// HasCourse reports whether name is a known course (exact match).
func (c *Catalog) HasCourse(name string) bool {
	_, ok := c.courses[name]
	return ok
}

// AssessmentsFor returns the full ordered assessment list of a course.
// Unknown courses have no assessments.
func (c *Catalog) AssessmentsFor(course string) []string {
	crs, ok := c.courses[course]
	if !ok {
		return []string{}
	}
	return slices.Clone(crs.Assessments)
}

// BracketsFor returns the duration brackets of a course in ascending order.
func (c *Catalog) BracketsFor(course string) []Bracket {
	crs, ok := c.courses[course]
	if !ok {
		return []Bracket{}
	}
	return cloneCourse(crs).Brackets
}

// AllAssessments returns every assessment used by at least one course,
// in canonical catalog order.
func (c *Catalog) AllAssessments() []string {
	used := make(map[string]bool)
	for _, crs := range c.courses {
		for _, a := range crs.Assessments {
			used[a] = true
		}
	}
	out := make([]string, 0, len(used))
	for _, a := range c.order {
		if used[a] {
			out = append(out, a)
		}
	}
	return out
}

// CanonicalCourse maps a loosely spelled course name ("general  english")
// to its catalog spelling.
func (c *Catalog) CanonicalCourse(name string) (string, bool) {
	canonical, ok := c.folded[foldName(name)]
	return canonical, ok
}

func foldName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func cloneCourse(c Course) Course {
	out := Course{
		Name:        c.Name,
		Assessments: slices.Clone(c.Assessments),
		Brackets:    make([]Bracket, len(c.Brackets)),
	}
	for i, b := range c.Brackets {
		out.Brackets[i] = Bracket{
			MinWeeks:    b.MinWeeks,
			MaxWeeks:    b.MaxWeeks,
			Assessments: slices.Clone(b.Assessments),
		}
	}
	return out
}

// check runs the semantic rules the JSON schema cannot express.
func check(doc Document) []string {
	var problems []string

	canonical := make(map[string]bool, len(doc.Assessments))
	for _, a := range doc.Assessments {
		if canonical[a] {
			problems = append(problems, fmt.Sprintf("assessment %q declared twice", a))
		}
		canonical[a] = true
	}

	seenCourse := make(map[string]bool)
	for _, crs := range doc.Courses {
		if crs.Name == "" {
			problems = append(problems, "course with empty name")
			continue
		}
		if seenCourse[crs.Name] {
			problems = append(problems, fmt.Sprintf("course %q declared twice", crs.Name))
		}
		seenCourse[crs.Name] = true

		inCourse := make(map[string]bool, len(crs.Assessments))
		for _, a := range crs.Assessments {
			if !canonical[a] {
				problems = append(problems, fmt.Sprintf("course %q: unknown assessment %q", crs.Name, a))
			}
			if inCourse[a] {
				problems = append(problems, fmt.Sprintf("course %q: assessment %q listed twice", crs.Name, a))
			}
			inCourse[a] = true
		}

		for i, b := range crs.Brackets {
			if b.MinWeeks > b.MaxWeeks {
				problems = append(problems, fmt.Sprintf("course %q: bracket %d-%d has min above max", crs.Name, b.MinWeeks, b.MaxWeeks))
			}
			if i > 0 {
				prev := crs.Brackets[i-1]
				if b.MinWeeks != prev.MaxWeeks+1 {
					problems = append(problems, fmt.Sprintf("course %q: bracket %d-%d does not follow %d-%d",
						crs.Name, b.MinWeeks, b.MaxWeeks, prev.MinWeeks, prev.MaxWeeks))
				}
			}
			for _, a := range b.Assessments {
				if !inCourse[a] {
					problems = append(problems, fmt.Sprintf("course %q: bracket %d-%d requires %q outside the course",
						crs.Name, b.MinWeeks, b.MaxWeeks, a))
				}
			}
		}
	}
	return problems
}
