package catalog

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/recoverops/dunning/model"
)

// Registry is the immutable workflow catalog. It is built once from validated
// definition files and injected into the evaluation loop; there is no runtime
// mutation, so reads need no locking.
type Registry struct {
	workflows []model.WorkflowDefinition
	byID      map[string]model.WorkflowDefinition
	checksum  string
}

// NewRegistry builds a Registry from definition files. Workflows keep their
// declared order within a file; files contribute in the order given.
func NewRegistry(files []File) *Registry {
	r := &Registry{
		byID: make(map[string]model.WorkflowDefinition),
	}

	var checksumParts []string
	for _, f := range files {
		checksumParts = append(checksumParts, f.Checksum)
		for _, wf := range f.Workflows {
			r.workflows = append(r.workflows, wf)
			r.byID[wf.ID] = wf
		}
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	r.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	return r
}

// Workflows returns all workflow definitions in declaration order. The
// returned slice is shared and must not be modified.
func (r *Registry) Workflows() []model.WorkflowDefinition {
	return r.workflows
}

// Get returns the workflow definition with the given ID.
func (r *Registry) Get(id string) (model.WorkflowDefinition, bool) {
	wf, ok := r.byID[id]
	return wf, ok
}

// Len returns the number of workflows in the catalog.
func (r *Registry) Len() int {
	return len(r.workflows)
}

// Checksum returns a combined checksum over all source files, for logging
// which catalog generation a process is running.
func (r *Registry) Checksum() string {
	return r.checksum
}
