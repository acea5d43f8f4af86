package evaluation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Score bounds for a single criterion
const (
	MinScore = 1
	MaxScore = 5
)

// GradeStep maps a minimum percentage to a letter grade
type GradeStep struct {
	Grade         string `yaml:"grade" json:"grade"`
	MinPercentage int    `yaml:"min" json:"min"`
}

// GradeTable is a step function from percentage to grade.
// Steps are kept in descending MinPercentage order. A percentage at or below
// Floor takes the fallback grade; a zero Floor disables it.
type GradeTable struct {
	Name     string      `yaml:"name" json:"name"`
	Steps    []GradeStep `yaml:"steps" json:"steps"`
	Fallback string      `yaml:"fallback" json:"fallback"`
	Floor    int         `yaml:"floor" json:"floor,omitempty"`
}

// TableA is the default grading table
var TableA = GradeTable{
	Name: "table_a",
	Steps: []GradeStep{
		{Grade: "A", MinPercentage: 80},
		{Grade: "B", MinPercentage: 60},
		{Grade: "C", MinPercentage: 40},
		{Grade: "D", MinPercentage: 1},
	},
	Fallback: "F",
	Floor:    FloorPercentage,
}

// TableB is the stricter grading table
var TableB = GradeTable{
	Name: "table_b",
	Steps: []GradeStep{
		{Grade: "A", MinPercentage: 90},
		{Grade: "B", MinPercentage: 80},
		{Grade: "C", MinPercentage: 70},
		{Grade: "D", MinPercentage: 60},
	},
	Fallback: "F",
}

// Grade returns the grade for a percentage
func (t GradeTable) Grade(percentage int) string {
	if t.Floor > 0 && percentage <= t.Floor {
		return t.Fallback
	}
	for _, s := range t.Steps {
		if percentage >= s.MinPercentage {
			return s.Grade
		}
	}
	return t.Fallback
}

func (t GradeTable) validate() error {
	if len(t.Steps) == 0 {
		return fmt.Errorf("%w: grade table %q has no steps", ErrInvalidInput, t.Name)
	}
	if t.Fallback == "" {
		return fmt.Errorf("%w: grade table %q has no fallback grade", ErrInvalidInput, t.Name)
	}
	if t.Floor < 0 || t.Floor > 100 {
		return fmt.Errorf("%w: grade table %q floor %d out of range", ErrInvalidInput, t.Name, t.Floor)
	}
	for i, s := range t.Steps {
		if s.Grade == "" {
			return fmt.Errorf("%w: grade table %q step %d has no grade", ErrInvalidInput, t.Name, i)
		}
		if s.MinPercentage < 0 || s.MinPercentage > 100 {
			return fmt.Errorf("%w: grade table %q step %s threshold %d out of range", ErrInvalidInput, t.Name, s.Grade, s.MinPercentage)
		}
	}
	return nil
}

// Policy controls how missing scores and percentages are treated.
// MissingScore 0 makes any absent criterion score an error.
type Policy struct {
	MissingScore int
	Thresholds   GradeTable
}

// DefaultPolicy returns the canonical policy: missing scores count as 1, graded by TableA
func DefaultPolicy() Policy {
	return Policy{MissingScore: 1, Thresholds: TableA}
}

// FloorPercentage is the percentage of a rating with every criterion at MinScore.
// TableA grades it with the fallback grade.
const FloorPercentage = 100 * MinScore / MaxScore

// Grade grades a rating or aggregate percentage with the policy's table
func (p Policy) Grade(percentage int) string {
	return p.Thresholds.Grade(percentage)
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.MissingScore != 0 && (p.MissingScore < MinScore || p.MissingScore > MaxScore) {
		return fmt.Errorf("%w: missing score %d must be 0 or between %d and %d", ErrInvalidInput, p.MissingScore, MinScore, MaxScore)
	}
	return p.Thresholds.validate()
}

// TableByName returns a built-in grade table
func TableByName(name string) (GradeTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a", "table_a":
		return TableA, nil
	case "b", "table_b":
		return TableB, nil
	default:
		return GradeTable{}, fmt.Errorf("%w: unknown grade table %q", ErrInvalidInput, name)
	}
}

// policyFile is the on-disk YAML form of a Policy
type policyFile struct {
	MissingScore *int        `yaml:"missing_score"`
	GradeTable   string      `yaml:"grade_table"`
	Custom       *GradeTable `yaml:"custom_table"`
}

// ParsePolicy decodes a YAML policy document.
// A custom_table takes precedence over a named grade_table.
func ParsePolicy(data []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("failed to parse evaluation policy: %w", err)
	}

	policy := DefaultPolicy()
	if f.MissingScore != nil {
		policy.MissingScore = *f.MissingScore
	}

	if f.Custom != nil {
		table := *f.Custom
		if table.Name == "" {
			table.Name = "custom"
		}
		sort.SliceStable(table.Steps, func(i, j int) bool {
			return table.Steps[i].MinPercentage > table.Steps[j].MinPercentage
		})
		policy.Thresholds = table
	} else {
		table, err := TableByName(f.GradeTable)
		if err != nil {
			return Policy{}, err
		}
		policy.Thresholds = table
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// LoadPolicy reads a YAML policy file
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read evaluation policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// Configure builds the active policy from settings. A policy file wins over the inline values.
func Configure(policyFile string, missingScore int, tableName string) (Policy, error) {
	if policyFile != "" {
		return LoadPolicy(policyFile)
	}
	table, err := TableByName(tableName)
	if err != nil {
		return Policy{}, err
	}
	policy := Policy{MissingScore: missingScore, Thresholds: table}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
