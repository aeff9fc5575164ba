package build

import (
	"os"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/order"
)

// writeSpecCommit writes a spec commit with the given steps and points the
// ref at it.
func writeSpecCommit(t *testing.T, repo *git.Repository, ref string, steps map[string]string) plumbing.Hash {
	t.Helper()
	stepEntries := make([]object.TreeEntry, 0, len(steps))
	for name, script := range steps {
		blob, err := repo.CreateBlob([]byte(script))
		require.NoError(t, err)
		stepEntries = append(stepEntries, object.TreeEntry{
			Name: name, Mode: filemode.Regular, Hash: blob,
		})
	}
	stepsTree, err := repo.CreateTree(stepEntries)
	require.NoError(t, err)
	tree, err := repo.CreateTree([]object.TreeEntry{
		{Name: "steps", Mode: filemode.Dir, Hash: stepsTree},
	})
	require.NoError(t, err)
	commit, err := repo.CreateCommit("", "spec: "+ref, tree, nil, false)
	require.NoError(t, err)
	require.NoError(t, repo.CreateReference(ref, commit))
	return commit
}

func assignedOrder(t *testing.T) order.Order {
	t.Helper()
	o := order.New("build", "/spec", "refs/ci/spec/proj", "/src", nil, nil)
	assigned, err := o.Assign("bob")
	require.NoError(t, err)
	return assigned
}

func TestStepEqual(t *testing.T) {
	a := Step{Script: []byte("true\n")}
	b := Step{Script: []byte("true\n")}
	c := Step{Script: []byte("false\n")}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestStepExecute(t *testing.T) {
	step := Step{Script: []byte("echo hello; echo oops >&2; exit 3\n")}
	report, err := step.Execute(MergedEnv(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Exit)
	assert.Equal(t, "hello\n", string(report.Stdout))
	assert.Equal(t, "oops\n", string(report.Stderr))
	assert.GreaterOrEqual(t, report.TFinish, report.TStart)
}

func TestStepExecuteEnvAndCwd(t *testing.T) {
	dir := t.TempDir()
	step := Step{Script: []byte("echo $GREETING; pwd\n")}
	env := MergedEnv(map[string]string{"GREETING": "hi"})
	report, err := step.Execute(env, dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Exit)
	assert.Contains(t, string(report.Stdout), "hi\n")
	assert.Contains(t, string(report.Stdout), dir)
}

func TestSpecFromRef(t *testing.T) {
	repo := newTestRepo(t)
	commit := writeSpecCommit(t, repo, "refs/ci/spec/proj", map[string]string{
		"1": "true\n",
		"2": "false\n",
	})

	spec, err := SpecFromRef(repo, "proj")
	require.NoError(t, err)
	assert.Equal(t, "proj", spec.Name)
	assert.Equal(t, commit, spec.OID)
	assert.Equal(t, []string{"1", "2"}, spec.StepNames())
	assert.True(t, spec.Steps["1"].Equal(Step{Script: []byte("true\n")}))
}

func TestSpecFromRefReservedEnvTree(t *testing.T) {
	repo := newTestRepo(t)
	empty, err := repo.CreateTree(nil)
	require.NoError(t, err)
	tree, err := repo.CreateTree([]object.TreeEntry{
		{Name: "steps", Mode: filemode.Dir, Hash: empty},
		{Name: "env", Mode: filemode.Dir, Hash: empty},
	})
	require.NoError(t, err)
	commit, err := repo.CreateCommit("", "spec", tree, nil, false)
	require.NoError(t, err)
	require.NoError(t, repo.CreateReference("refs/ci/spec/proj", commit))

	_, err = SpecFromRef(repo, "proj")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestSpecExecuteTwoStepsPass(t *testing.T) {
	spec := Spec{
		Name: "proj",
		Steps: map[string]Step{
			"1": {Script: []byte("true\n")},
			"2": {Script: []byte("true\n")},
		},
	}

	report, err := spec.Execute(assignedOrder(t), plumbing.ZeroHash, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "[PASS] proj", report.Message())
	require.Len(t, report.Steps, 2)
	assert.Equal(t, 0, report.Steps["1"].Exit)
	assert.Equal(t, 0, report.Steps["2"].Exit)
	assert.True(t, report.Order.IsCompleted())
}

func TestSpecExecuteStopsAtFirstFailure(t *testing.T) {
	spec := Spec{
		Name: "proj",
		Steps: map[string]Step{
			"1": {Script: []byte("true\n")},
			"2": {Script: []byte("false\n")},
			"3": {Script: []byte("true\n")},
		},
	}

	report, err := spec.Execute(assignedOrder(t), plumbing.ZeroHash, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "[FAIL] proj", report.Message())
	require.Len(t, report.Steps, 2)
	assert.Equal(t, 0, report.Steps["1"].Exit)
	assert.NotEqual(t, 0, report.Steps["2"].Exit)
	assert.NotContains(t, report.Steps, "3")
}

func TestSpecExecuteRequiresAssignedOrder(t *testing.T) {
	spec := Spec{Name: "proj", Steps: map[string]Step{"1": {Script: []byte("true\n")}}}

	o := order.New("build", "/spec", "refs/ci/spec/proj", "/src", nil, nil)
	_, err := spec.Execute(o, plumbing.ZeroHash, t.TempDir())
	var serr SpecError
	assert.ErrorAs(t, err, &serr)

	assigned, err := o.Assign("bob")
	require.NoError(t, err)
	completed, err := assigned.Complete()
	require.NoError(t, err)
	_, err = spec.Execute(completed, plumbing.ZeroHash, t.TempDir())
	assert.ErrorAs(t, err, &serr)
}

func TestSpecExecuteMergesEnv(t *testing.T) {
	t.Setenv("IGOR_TEST_PROC", "proc")
	spec := Spec{
		Name: "proj",
		Env:  map[string]string{"FOO": "BAR"},
		Steps: map[string]Step{
			"1": {Script: []byte("test \"$FOO\" = BAR && test -n \"$IGOR_TEST_PROC\"\n")},
		},
	}

	report, err := spec.Execute(assignedOrder(t), plumbing.ZeroHash, t.TempDir())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "BAR", report.Env["FOO"])
	assert.Equal(t, "proc", report.Env["IGOR_TEST_PROC"])
}

func TestSpecExecuteOrderEnvOverridesSpecEnv(t *testing.T) {
	spec := Spec{
		Name:  "proj",
		Env:   map[string]string{"FOO": "spec"},
		Steps: map[string]Step{"1": {Script: []byte("test \"$FOO\" = order\n")}},
	}
	o := order.New("build", "/spec", "refs/ci/spec/proj", "/src", nil,
		map[string]string{"FOO": "order"})
	assigned, err := o.Assign("bob")
	require.NoError(t, err)

	report, err := spec.Execute(assigned, plumbing.ZeroHash, t.TempDir())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "order", report.Env["FOO"])
}

func TestMergedEnvCopiesProcessEnv(t *testing.T) {
	t.Setenv("IGOR_TEST_COPY", "yes")
	overlay := map[string]string{}
	env := MergedEnv(overlay)

	assert.Equal(t, "yes", env["IGOR_TEST_COPY"])
	assert.Equal(t, len(os.Environ()), len(env))

	// the merged env never aliases the overlay
	env["IGOR_TEST_COPY"] = "mutated"
	assert.Empty(t, overlay["IGOR_TEST_COPY"])
}
