// Package resolver decides whether a stage's declared dependencies are
// satisfied by the stages already processed in the current run.
package resolver

import (
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// Ready reports whether every name in dependsOn has status success among the
// processed stage states. A dependency that is failed, skipped, still pending,
// or simply absent blocks the stage. Unknown names never resolve; the
// definition validator rejects them at registration time.
func Ready(dependsOn []string, processed []domain.StageState) bool {
	if len(dependsOn) == 0 {
		return true
	}
	byName := make(map[string]domain.StageStatus, len(processed))
	for _, state := range processed {
		byName[state.Name] = state.Status
	}
	for _, dep := range dependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		if byName[dep] != domain.StageStatusSuccess {
			return false
		}
	}
	return true
}
