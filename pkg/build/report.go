package build

import (
	"bytes"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/order"
)

// ReportError reports an invalid build report.
type ReportError string

func (e ReportError) Error() string { return string(e) }

// StepReport is the immutable outcome of one build step.
type StepReport struct {
	Exit    int
	TStart  float64
	TFinish float64
	Stdout  []byte
	Stderr  []byte
}

// OK reports whether the step passed.
func (r StepReport) OK() bool { return r.Exit == 0 }

// Equal reports whether two step reports agree on every field.
func (r StepReport) Equal(other StepReport) bool {
	return r.Exit == other.Exit &&
		r.TStart == other.TStart &&
		r.TFinish == other.TFinish &&
		bytes.Equal(r.Stdout, other.Stdout) &&
		bytes.Equal(r.Stderr, other.Stderr)
}

// Write writes the step report into the repository as a tree of exit,
// t_start, t_finish, stdout and stderr blobs, returning the tree id.
func (r StepReport) Write(repo *git.Repository) (plumbing.Hash, error) {
	blobs := []struct {
		name string
		data []byte
	}{
		{"exit", []byte(strconv.Itoa(r.Exit) + "\n")},
		{"t_start", []byte(formatUnix(r.TStart) + "\n")},
		{"t_finish", []byte(formatUnix(r.TFinish) + "\n")},
		{"stdout", r.Stdout},
		{"stderr", r.Stderr},
	}
	entries := make([]object.TreeEntry, 0, len(blobs))
	for _, b := range blobs {
		oid, err := repo.CreateBlob(b.data)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{
			Name: b.name,
			Mode: filemode.Regular,
			Hash: oid,
		})
	}
	return repo.CreateTree(entries)
}

// StepReportFromTree reads a step report back from its tree.
func StepReportFromTree(repo *git.Repository, oid plumbing.Hash) (StepReport, error) {
	tree, err := repo.Tree(oid)
	if err != nil {
		return StepReport{}, err
	}
	blob := func(name string) ([]byte, error) {
		entry, err := tree.FindEntry(name)
		if err != nil {
			return nil, fmt.Errorf("step report tree: %w", err)
		}
		return repo.BlobData(entry.Hash)
	}

	var report StepReport
	data, err := blob("exit")
	if err != nil {
		return StepReport{}, err
	}
	if report.Exit, err = strconv.Atoi(strings.TrimSpace(string(data))); err != nil {
		return StepReport{}, err
	}
	if data, err = blob("t_start"); err != nil {
		return StepReport{}, err
	}
	if report.TStart, err = strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err != nil {
		return StepReport{}, err
	}
	if data, err = blob("t_finish"); err != nil {
		return StepReport{}, err
	}
	if report.TFinish, err = strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err != nil {
		return StepReport{}, err
	}
	if report.Stdout, err = blob("stdout"); err != nil {
		return StepReport{}, err
	}
	if report.Stderr, err = blob("stderr"); err != nil {
		return StepReport{}, err
	}
	return report, nil
}

func formatUnix(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// Report is the outcome of executing a build spec for a completed order.
type Report struct {
	SpecOID plumbing.Hash
	// SourceOID is the built source commit. Write records it as a parent
	// only when the commit is present in the repository, so a report read
	// back with ReportFromCommit has the zero hash otherwise.
	SourceOID plumbing.Hash
	Name      string
	Order     order.Order
	Env       map[string]string
	Steps     map[string]StepReport
}

// NewReport constructs a report. The order must be completed.
func NewReport(specOID, sourceOID plumbing.Hash, name string, o order.Order, env map[string]string, steps map[string]StepReport) (Report, error) {
	if !o.IsCompleted() {
		return Report{}, ReportError("order must be complete")
	}
	return Report{
		SpecOID:   specOID,
		SourceOID: sourceOID,
		Name:      name,
		Order:     o,
		Env:       env,
		Steps:     steps,
	}, nil
}

// OK reports whether every step passed. It does not check that the number
// of steps matches the spec.
func (r Report) OK() bool {
	for _, step := range r.Steps {
		if !step.OK() {
			return false
		}
	}
	return true
}

// Result returns the textual result, PASS or FAIL.
func (r Report) Result() string {
	if r.OK() {
		return "PASS"
	}
	return "FAIL"
}

// Message returns the commit message for the report.
func (r Report) Message() string {
	return fmt.Sprintf("[%s] %s", r.Result(), r.Name)
}

// Equal reports whether two reports agree on all observable fields.
func (r Report) Equal(other Report) bool {
	if r.SpecOID != other.SpecOID ||
		r.SourceOID != other.SourceOID ||
		r.Name != other.Name ||
		!r.Order.Equal(other.Order) ||
		!maps.Equal(r.Env, other.Env) ||
		len(r.Steps) != len(other.Steps) {
		return false
	}
	for name, step := range r.Steps {
		o, ok := other.Steps[name]
		if !ok || !step.Equal(o) {
			return false
		}
	}
	return true
}

func (r Report) writeTree(repo *git.Repository) (plumbing.Hash, error) {
	orderJSON, err := git.ObjToBytes(r.Order.ToObj())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	orderOID, err := repo.CreateBlob(orderJSON)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	envJSON, err := git.ObjToBytes(r.Env)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	envOID, err := repo.CreateBlob(envJSON)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	resultOID, err := repo.CreateBlob([]byte(r.Result()))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	stepEntries := make([]object.TreeEntry, 0, len(r.Steps))
	for name, step := range r.Steps {
		oid, err := step.Write(repo)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		stepEntries = append(stepEntries, object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: oid,
		})
	}
	stepsOID, err := repo.CreateTree(stepEntries)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return repo.CreateTree([]object.TreeEntry{
		{Name: "order", Mode: filemode.Regular, Hash: orderOID},
		{Name: "env", Mode: filemode.Regular, Hash: envOID},
		{Name: "result", Mode: filemode.Regular, Hash: resultOID},
		{Name: "steps", Mode: filemode.Dir, Hash: stepsOID},
	})
}

// Write writes the report into the repository as a commit succeeding prev
// and returns the commit id. Parent 0 is prev, parent 1 the spec commit,
// and parent 2 the source commit when it is present in the repository.
// No refs are written or updated; that is the caller's responsibility.
func (r Report) Write(repo *git.Repository, prev plumbing.Hash) (plumbing.Hash, error) {
	tree, err := r.writeTree(repo)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	parents := []plumbing.Hash{prev, r.SpecOID}
	if r.SourceOID != plumbing.ZeroHash && repo.HasObject(r.SourceOID) {
		parents = append(parents, r.SourceOID)
	}
	return repo.CreateCommit("", r.Message(), tree, parents, false)
}

// ReportFromCommit reads a report back from its commit.
func ReportFromCommit(repo *git.Repository, oid plumbing.Hash) (Report, error) {
	commit, err := repo.Commit(oid)
	if err != nil {
		return Report{}, err
	}
	if len(commit.ParentHashes) < 2 {
		return Report{}, ReportError("report commit has too few parents")
	}
	report := Report{SpecOID: commit.ParentHashes[1]}
	if len(commit.ParentHashes) >= 3 {
		report.SourceOID = commit.ParentHashes[2]
	}

	msg := strings.TrimSuffix(commit.Message, "\n")
	if _, name, ok := strings.Cut(msg, " "); ok {
		report.Name = name
	}

	tree, err := commit.Tree()
	if err != nil {
		return Report{}, err
	}
	orderEntry, err := tree.FindEntry("order")
	if err != nil {
		return Report{}, err
	}
	orderData, err := repo.BlobData(orderEntry.Hash)
	if err != nil {
		return Report{}, err
	}
	var orderObj map[string]any
	if err := git.BytesToObj(orderData, &orderObj); err != nil {
		return Report{}, err
	}
	report.Order = order.FromObj(orderObj)

	envEntry, err := tree.FindEntry("env")
	if err != nil {
		return Report{}, err
	}
	envData, err := repo.BlobData(envEntry.Hash)
	if err != nil {
		return Report{}, err
	}
	if err := git.BytesToObj(envData, &report.Env); err != nil {
		return Report{}, err
	}

	stepsEntry, err := tree.FindEntry("steps")
	if err != nil {
		return Report{}, err
	}
	stepsTree, err := repo.Tree(stepsEntry.Hash)
	if err != nil {
		return Report{}, err
	}
	report.Steps = make(map[string]StepReport, len(stepsTree.Entries))
	for _, te := range stepsTree.Entries {
		step, err := StepReportFromTree(repo, te.Hash)
		if err != nil {
			return Report{}, err
		}
		report.Steps[te.Name] = step
	}

	return report, nil
}
