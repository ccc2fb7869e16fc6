package curriculum

// Grade is one school year with its semesters, loaded from a YAML file.
type Grade struct {
	Name      string     `yaml:"grade" json:"grade"`
	Order     int        `yaml:"order" json:"-"`
	Semesters []Semester `yaml:"semesters" json:"semesters"`
}

// Semester groups the units taught in one term.
type Semester struct {
	Name  string `yaml:"name" json:"name"`
	Units []Unit `yaml:"units" json:"units"`
}

// Unit is a textbook chapter and its ordered sub-topics.
type Unit struct {
	Name      string   `yaml:"name" json:"name"`
	SubTopics []string `yaml:"sub_topics" json:"subTopics"`
}
