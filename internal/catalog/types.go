package catalog

// Course names shipped with the default catalog.
const (
	CourseEAP            = "EAP"
	CourseGeneralEnglish = "General English"
)

// Bracket maps a range of enrolment lengths (inclusive, in weeks) to the
// assessments a student enrolled for that long must complete.
type Bracket struct {
	MinWeeks    int      `yaml:"min_weeks" json:"min_weeks"`
	MaxWeeks    int      `yaml:"max_weeks" json:"max_weeks"`
	Assessments []string `yaml:"assessments" json:"assessments"`
}

// Contains reports whether weeks falls inside the bracket.
func (b Bracket) Contains(weeks int) bool {
	return b.MinWeeks <= weeks && weeks <= b.MaxWeeks
}

// Course is a study track with its ordered assessment list and
// duration brackets.
type Course struct {
	Name        string    `yaml:"name" json:"name"`
	Assessments []string  `yaml:"assessments" json:"assessments"`
	Brackets    []Bracket `yaml:"brackets" json:"brackets"`
}

// Document is the catalog file format.
type Document struct {
	Assessments []string `yaml:"assessments" json:"assessments"`
	Courses     []Course `yaml:"courses" json:"courses"`
}
