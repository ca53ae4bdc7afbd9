// Package pipelinespec parses and validates declarative pipeline definition
// documents. Validation happens at registration time so that execution can
// trust declaration order: every depends_on entry names a stage declared
// earlier in the same document.
package pipelinespec

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

const documentSchemaV1 = "pipewright.pipeline.v1"

type Document struct {
	Schema              string      `yaml:"schema" json:"schema"`
	Name                string      `yaml:"name" json:"name"`
	Enabled             *bool       `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ExperimentID        string      `yaml:"experiment_id,omitempty" json:"experiment_id,omitempty"`
	NotifyEmails        []string    `yaml:"notify_emails,omitempty" json:"notify_emails,omitempty"`
	TriggerOnRetraining bool        `yaml:"trigger_on_retraining,omitempty" json:"trigger_on_retraining,omitempty"`
	ModelName           string      `yaml:"model_name,omitempty" json:"model_name,omitempty"`
	Stages              []StageNode `yaml:"stages" json:"stages"`
}

type StageNode struct {
	Name              string   `yaml:"name" json:"name"`
	Type              string   `yaml:"type,omitempty" json:"type,omitempty"`
	Script            string   `yaml:"script,omitempty" json:"script,omitempty"`
	DependsOn         []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	ContinueOnFailure bool     `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
	TimeoutSeconds    int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// Parse decodes a YAML definition document and checks its structural shape.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse pipeline document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.Schema) != documentSchemaV1 {
		return fmt.Errorf("schema must be %q", documentSchemaV1)
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	if len(d.Stages) == 0 {
		return errors.New("stages must be non-empty")
	}
	earlier := make(map[string]struct{}, len(d.Stages))
	for i, stage := range d.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return fmt.Errorf("stages[%d].name is required", i)
		}
		if _, ok := earlier[name]; ok {
			return fmt.Errorf("stages[%d].name must be unique (duplicate %q)", i, name)
		}
		kind := strings.ToLower(strings.TrimSpace(stage.Type))
		if kind == "" {
			kind = string(domain.StageTypeGeneric)
		}
		if !domain.KnownStageType(kind) {
			return fmt.Errorf("stages[%d].type unsupported: %q", i, stage.Type)
		}
		if stage.TimeoutSeconds < 0 {
			return fmt.Errorf("stages[%d].timeout_seconds must be >= 0", i)
		}
		for _, dep := range stage.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				return fmt.Errorf("stages[%d].depends_on entries must be non-empty", i)
			}
			if dep == name {
				return fmt.Errorf("stages[%d] must not depend on itself", i)
			}
			if _, ok := earlier[dep]; !ok {
				return fmt.Errorf("stages[%d].depends_on references %q which is not declared earlier", i, dep)
			}
		}
		earlier[name] = struct{}{}
	}
	if d.TriggerOnRetraining && strings.TrimSpace(d.ModelName) == "" {
		return errors.New("model_name is required when trigger_on_retraining is set")
	}
	return nil
}

// ToDefinition converts a validated document into a domain definition.
// The pipeline id is assigned by the caller.
func (d Document) ToDefinition(id string) domain.PipelineDefinition {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	stages := make([]domain.StageSpec, 0, len(d.Stages))
	for _, node := range d.Stages {
		kind := strings.ToLower(strings.TrimSpace(node.Type))
		if kind == "" {
			kind = string(domain.StageTypeGeneric)
		}
		stages = append(stages, domain.StageSpec{
			Name:              strings.TrimSpace(node.Name),
			Type:              domain.StageType(kind),
			Script:            strings.TrimSpace(node.Script),
			DependsOn:         trimNonEmpty(node.DependsOn),
			ContinueOnFailure: node.ContinueOnFailure,
			TimeoutSeconds:    node.TimeoutSeconds,
		})
	}
	return domain.PipelineDefinition{
		ID:                  strings.TrimSpace(id),
		Name:                strings.TrimSpace(d.Name),
		Stages:              stages,
		Enabled:             enabled,
		ExperimentID:        strings.TrimSpace(d.ExperimentID),
		NotifyEmails:        trimNonEmpty(d.NotifyEmails),
		TriggerOnRetraining: d.TriggerOnRetraining,
		ModelName:           strings.TrimSpace(d.ModelName),
	}
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
