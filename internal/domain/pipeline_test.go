package domain

import (
	"strings"
	"testing"
)

func TestPipelineDefinitionValidate(t *testing.T) {
	valid := PipelineDefinition{
		Name: "training",
		Stages: []StageSpec{
			{Name: "fetch", Type: StageTypeGeneric},
			{Name: "train", Type: StageTypeTrain, DependsOn: []string{"fetch"}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*PipelineDefinition)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(p *PipelineDefinition) { p.Name = " " },
			wantErr: "name is required",
		},
		{
			name:    "no stages",
			mutate:  func(p *PipelineDefinition) { p.Stages = nil },
			wantErr: "at least one stage",
		},
		{
			name: "duplicate stage names",
			mutate: func(p *PipelineDefinition) {
				p.Stages = append(p.Stages, StageSpec{Name: "fetch", Type: StageTypeGeneric})
			},
			wantErr: "unique",
		},
		{
			name: "forward dependency",
			mutate: func(p *PipelineDefinition) {
				p.Stages[0].DependsOn = []string{"train"}
			},
			wantErr: "declared earlier",
		},
		{
			name: "retraining trigger without model",
			mutate: func(p *PipelineDefinition) {
				p.TriggerOnRetraining = true
				p.ModelName = ""
			},
			wantErr: "model name",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := valid
			def.Stages = append([]StageSpec(nil), valid.Stages...)
			tc.mutate(&def)
			err := def.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestKnownStageType(t *testing.T) {
	for _, value := range []string{"generic", "train", " Train "} {
		if !KnownStageType(value) {
			t.Fatalf("%q should be known", value)
		}
	}
	for _, value := range []string{"", "spark", "shell"} {
		if KnownStageType(value) {
			t.Fatalf("%q should be unknown", value)
		}
	}
}
