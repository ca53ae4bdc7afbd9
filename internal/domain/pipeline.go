package domain

import (
	"errors"
	"fmt"
	"strings"
)

// StageType selects the executor used for a stage.
type StageType string

const (
	StageTypeGeneric StageType = "generic"
	StageTypeTrain   StageType = "train"
)

// KnownStageType reports whether value names a supported stage type.
func KnownStageType(value string) bool {
	switch StageType(strings.ToLower(strings.TrimSpace(value))) {
	case StageTypeGeneric, StageTypeTrain:
		return true
	default:
		return false
	}
}

// StageSpec declares one unit of work within a pipeline.
type StageSpec struct {
	Name              string
	Type              StageType
	Script            string
	DependsOn         []string
	ContinueOnFailure bool
	TimeoutSeconds    int
}

// PipelineDefinition is the immutable configuration a run executes against.
// Owned by the record store; read-only to the coordinator.
type PipelineDefinition struct {
	ID                  string
	Name                string
	Stages              []StageSpec
	Enabled             bool
	ExperimentID        string
	NotifyEmails        []string
	TriggerOnRetraining bool
	ModelName           string
	LastRunID           string
	LastRunStatus       string
}

// StageNameSet returns the set of stage names declared in the definition.
func (p PipelineDefinition) StageNameSet() map[string]struct{} {
	names := make(map[string]struct{}, len(p.Stages))
	for _, stage := range p.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			continue
		}
		names[stage.Name] = struct{}{}
	}
	return names
}

// Validate checks the structural invariants of a definition. Every depends_on
// entry must name a stage declared earlier in the list; forward, unknown and
// self references are rejected here instead of degrading to a permanently
// blocked stage at run time.
func (p PipelineDefinition) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return errors.New("pipeline must declare at least one stage")
	}
	earlier := make(map[string]struct{}, len(p.Stages))
	for i, stage := range p.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return fmt.Errorf("stage[%d] name is required", i)
		}
		if _, ok := earlier[name]; ok {
			return fmt.Errorf("stage[%d] name must be unique (duplicate %q)", i, name)
		}
		if !KnownStageType(string(stage.Type)) {
			return fmt.Errorf("stage[%d] type unsupported: %q", i, stage.Type)
		}
		if stage.TimeoutSeconds < 0 {
			return fmt.Errorf("stage[%d] timeout_seconds must be >= 0", i)
		}
		for _, dep := range stage.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				return fmt.Errorf("stage[%d] depends_on entries must be non-empty", i)
			}
			if dep == name {
				return fmt.Errorf("stage[%d] must not depend on itself", i)
			}
			if _, ok := earlier[dep]; !ok {
				return fmt.Errorf("stage[%d] depends_on %q which is not declared earlier", i, dep)
			}
		}
		earlier[name] = struct{}{}
	}
	if p.TriggerOnRetraining && strings.TrimSpace(p.ModelName) == "" {
		return errors.New("model name is required when trigger_on_retraining is set")
	}
	return nil
}
