// Package subject holds the school-subject catalog: display names, grading
// prompts, worked examples and the rubric each subject is graded against.
package subject

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Criterion is one weighted rubric line. Weight is a percentage.
type Criterion struct {
	Name   string `yaml:"name" json:"name"`
	Weight int    `yaml:"weight" json:"weight"`
}

// Rubric is a named list of criteria.
type Rubric struct {
	Name     string      `yaml:"name"`
	Criteria []Criterion `yaml:"criteria"`
}

// Example is a worked question shown to the model as a format sample.
type Example struct {
	Question   string `yaml:"question" json:"question"`
	Answer     string `yaml:"answer" json:"answer"`
	Difficulty string `yaml:"difficulty" json:"difficulty"`
}

// FeedbackExample is the sample output for teacher-feedback analysis.
type FeedbackExample struct {
	ExerciseQuestion  string `yaml:"exercise_question" json:"exercise_question"`
	ImproveSuggestion string `yaml:"improve_suggestion" json:"improve_suggestion"`
}

// Subject is one entry of the catalog.
type Subject struct {
	Key             string          `yaml:"key"`
	Name            string          `yaml:"name"`
	RubricName      string          `yaml:"rubric"`
	QuestionType    string          `yaml:"question_type"`
	Grading         string          `yaml:"grading"`
	Example         Example         `yaml:"example"`
	FeedbackExample FeedbackExample `yaml:"feedback_example"`
}

type catalogFile struct {
	Rubrics  []Rubric  `yaml:"rubrics"`
	Subjects []Subject `yaml:"subjects"`
}

// Catalog is an immutable, ordered set of subjects and rubrics.
type Catalog struct {
	subjects []Subject
	byKey    map[string]int
	byName   map[string]int
	rubrics  map[string][]Criterion
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded subject catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a Catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		byKey:   make(map[string]int, len(f.Subjects)),
		byName:  make(map[string]int, len(f.Subjects)*2),
		rubrics: make(map[string][]Criterion, len(f.Rubrics)),
	}

	for _, r := range f.Rubrics {
		if r.Name == "" {
			return nil, fmt.Errorf("rubric without name")
		}
		c.rubrics[r.Name] = r.Criteria
	}

	for i, s := range f.Subjects {
		if s.Key == "" || s.Name == "" {
			return nil, fmt.Errorf("subject %d: key and name are required", i)
		}
		if _, dup := c.byKey[s.Key]; dup {
			return nil, fmt.Errorf("duplicate subject key %q", s.Key)
		}
		if s.RubricName != "" {
			if _, ok := c.rubrics[s.RubricName]; !ok {
				return nil, fmt.Errorf("subject %q: unknown rubric %q", s.Key, s.RubricName)
			}
		}
		c.subjects = append(c.subjects, s)
		c.byKey[s.Key] = i
		c.byName[fold(s.Name)] = i
		if s.RubricName != "" {
			c.byName[fold(s.RubricName)] = i
		}
	}

	if len(c.subjects) == 0 {
		return nil, fmt.Errorf("catalog has no subjects")
	}
	return c, nil
}

// Lookup finds a subject by its exact request key.
func (c *Catalog) Lookup(key string) (Subject, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Subject{}, false
	}
	return c.subjects[i], true
}

// Resolve accepts a request key, a Vietnamese display name in any case or
// Unicode composition, or a key in the wrong case.
func (c *Catalog) Resolve(nameOrKey string) (Subject, bool) {
	if s, ok := c.Lookup(nameOrKey); ok {
		return s, true
	}
	f := fold(nameOrKey)
	if i, ok := c.byName[f]; ok {
		return c.subjects[i], true
	}
	return c.Lookup(strings.ToLower(strings.TrimSpace(nameOrKey)))
}

// Rubric returns the criteria the subject is graded against.
func (c *Catalog) Rubric(s Subject) []Criterion {
	return c.rubrics[s.RubricName]
}

// RubricByName returns a rubric by its Vietnamese subject name.
func (c *Catalog) RubricByName(name string) ([]Criterion, bool) {
	r, ok := c.rubrics[name]
	return r, ok
}

// Keys lists subject keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.subjects))
	for i, s := range c.subjects {
		keys[i] = s.Key
	}
	return keys
}

// Subjects returns a copy of all subjects in catalog order.
func (c *Catalog) Subjects() []Subject {
	return append([]Subject(nil), c.subjects...)
}

// RubricText renders criteria as a prompt section under heading.
// It returns "" when there are no criteria.
func RubricText(criteria []Criterion, heading string) string {
	if len(criteria) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, cr := range criteria {
		fmt.Fprintf(&b, "- %s: %d%%\n", cr.Name, cr.Weight)
	}
	return b.String()
}

// fold normalises a subject name for lookup. Casers carry state, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
