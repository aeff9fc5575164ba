package build

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/order"
)

// SpecError reports an invalid spec or an invalid attempt to execute one.
type SpecError string

func (e SpecError) Error() string { return string(e) }

// ErrNotImplemented is returned when a spec tree carries a reserved entry
// (env/ or artifacts/) that has no implementation yet.
var ErrNotImplemented = errors.New("not implemented")

// Spec is a build specification: a named set of steps executed in ascending
// lexicographic order of their names, with an optional environment overlay.
type Spec struct {
	Name string
	OID  plumbing.Hash
	// Env is a partial environment merged over the process environment at
	// execution time.
	Env   map[string]string
	Steps map[string]Step
	// Artifacts names files to archive from the source tree after a
	// successful build. Reserved; never populated from a spec tree.
	Artifacts []string
}

// SpecFromRef resolves name in the repository and loads the spec from the
// resulting commit.
func SpecFromRef(repo *git.Repository, name string) (Spec, error) {
	h, err := repo.RevparseSingle(name)
	if err != nil {
		return Spec{}, err
	}
	commit, err := repo.PeelToCommit(h)
	if err != nil {
		return Spec{}, err
	}
	return SpecFromCommit(repo, name, commit)
}

// SpecFromCommit loads the spec encoded in the commit's tree.
func SpecFromCommit(repo *git.Repository, name string, commit *object.Commit) (Spec, error) {
	tree, err := commit.Tree()
	if err != nil {
		return Spec{}, err
	}
	return specFromTree(repo, name, commit.Hash, tree)
}

func specFromTree(repo *git.Repository, name string, commitOID plumbing.Hash, tree *object.Tree) (Spec, error) {
	if _, err := tree.FindEntry("env"); err == nil {
		return Spec{}, fmt.Errorf("spec env tree: %w", ErrNotImplemented)
	}
	if _, err := tree.FindEntry("artifacts"); err == nil {
		return Spec{}, fmt.Errorf("spec artifacts tree: %w", ErrNotImplemented)
	}

	stepsEntry, err := tree.FindEntry("steps")
	if err != nil {
		return Spec{}, SpecError("spec tree has no steps")
	}
	stepsTree, err := repo.Tree(stepsEntry.Hash)
	if err != nil {
		return Spec{}, err
	}
	steps := make(map[string]Step, len(stepsTree.Entries))
	for _, te := range stepsTree.Entries {
		step, err := StepFromBlob(repo, te.Hash)
		if err != nil {
			return Spec{}, err
		}
		steps[te.Name] = step
	}

	return Spec{
		Name:  name,
		OID:   commitOID,
		Steps: steps,
	}, nil
}

// StepNames returns the step names in execution order.
func (s Spec) StepNames() []string {
	names := make([]string, 0, len(s.Steps))
	for name := range s.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the spec's steps for the given order and returns the report.
//
// The order must be assigned and incomplete. The merged environment is the
// process environment overlaid by the spec's env overlay, overlaid by the
// order's env. Execution stops at the first failing step; the returned
// report carries the completed order.
func (s Spec) Execute(o order.Order, sourceOID plumbing.Hash, dir string) (Report, error) {
	if !o.IsAssigned() {
		return Report{}, SpecError("order must be assigned and incomplete")
	}

	env := MergedEnv(s.Env, o.Env)

	stepReports := make(map[string]StepReport)
	for _, name := range s.StepNames() {
		report, err := s.Steps[name].Execute(env, dir)
		if err != nil {
			return Report{}, fmt.Errorf("step %s: %w", name, err)
		}
		stepReports[name] = report
		if !report.OK() {
			break
		}
	}

	completed, err := o.Complete()
	if err != nil {
		return Report{}, err
	}

	return NewReport(s.OID, sourceOID, s.Name, completed, env, stepReports)
}

// MergedEnv copies the process environment and applies the overlays in
// order. The result never aliases an overlay.
func MergedEnv(overlays ...map[string]string) map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			env[k] = v
		}
	}
	return env
}
