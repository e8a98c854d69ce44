// Package rules loads the scoring-criteria metadata referenced by the
// evaluation prompt. Scoring formulas are policy carried in the rules file;
// the pipeline itself only enforces the 0-100 score band and the three named
// risk tiers.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Criterion is one named evaluation criterion.
type Criterion struct {
	Weight      float64 `yaml:"weight"`
	Description string  `yaml:"description"`
}

type rulesFile struct {
	EvaluationCriteria map[string]Criterion `yaml:"evaluation_criteria"`
}

// Load reads the evaluation-rules file once, at evaluation-agent
// construction.
func Load(path string) (map[string]Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evaluation rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse evaluation rules: %w", err)
	}
	if len(f.EvaluationCriteria) == 0 {
		return nil, fmt.Errorf("evaluation rules %s define no criteria", path)
	}
	return f.EvaluationCriteria, nil
}
