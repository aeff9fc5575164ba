package build

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/order"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

// newSourceRepo creates a non-bare repository with one commit and returns
// its path and HEAD id.
func newSourceRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("content\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("file.txt")
	require.NoError(t, err)
	head, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, head
}

func TestRepoCachePathStable(t *testing.T) {
	a := RepoCachePath("git://example.com/repo.git")
	b := RepoCachePath("git://example.com/repo.git")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, RepoCachePath("git://example.com/other.git"))
	assert.Regexp(t, `^/tmp/igor\d+$`, a)
}

func TestRepoCachePathAbsolutisesFilePaths(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel := RepoCachePath("./some-repo")
	abs := RepoCachePath(filepath.Join(wd, "some-repo"))
	assert.Equal(t, abs, rel)
}

func TestExecutorEndToEnd(t *testing.T) {
	origin := newTestRepo(t)
	writeSpecCommit(t, origin, "refs/ci/spec/proj", map[string]string{
		"1": "echo one\n",
		"2": "echo two\n",
	})
	sourceDir, _ := newSourceRepo(t)

	o := order.New("e2e build", origin.Path(), "refs/ci/spec/proj", sourceDir, nil, nil)
	assigned, err := o.Assign("bob")
	require.NoError(t, err)

	t.Cleanup(func() { os.RemoveAll(RepoCachePath(origin.Path())) })
	require.NoError(t, NewExecutor().Execute(assigned))

	// the published report is on the origin's report ref
	reportOID, err := origin.Reference("refs/ci/report/proj")
	require.NoError(t, err)
	report, err := ReportFromCommit(origin, reportOID)
	require.NoError(t, err)

	assert.Equal(t, "PASS", report.Result())
	assert.Equal(t, o.ID, report.Order.ID)
	assert.True(t, report.Order.IsCompleted())
	assert.Len(t, report.Steps, 2)
	assert.Equal(t, "one\n", string(report.Steps["1"].Stdout))

	// parent 0 of the first report is the null report
	commit, err := origin.Commit(reportOID)
	require.NoError(t, err)
	null, err := origin.NullReport()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(commit.ParentHashes), 2)
	assert.Equal(t, null, commit.ParentHashes[0])

	// the source commit lives outside the spec repository, so no source
	// parent was recorded
	assert.Equal(t, plumbing.ZeroHash, report.SourceOID)
}

func TestExecutorLinearisesReportHistory(t *testing.T) {
	origin := newTestRepo(t)
	writeSpecCommit(t, origin, "refs/ci/spec/proj", map[string]string{"1": "true\n"})
	sourceDir, _ := newSourceRepo(t)

	run := func() {
		o := order.New("build", origin.Path(), "refs/ci/spec/proj", sourceDir, nil, nil)
		assigned, err := o.Assign("bob")
		require.NoError(t, err)
		require.NoError(t, NewExecutor().Execute(assigned))
	}

	t.Cleanup(func() { os.RemoveAll(RepoCachePath(origin.Path())) })
	run()
	first, err := origin.Reference("refs/ci/report/proj")
	require.NoError(t, err)
	run()
	second, err := origin.Reference("refs/ci/report/proj")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	commit, err := origin.Commit(second)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(commit.ParentHashes), 2)
	assert.Equal(t, first, commit.ParentHashes[0], "each report succeeds the previous one")
}

func TestExecutorUnresolvableSpecRef(t *testing.T) {
	origin := newTestRepo(t)
	writeSpecCommit(t, origin, "refs/ci/spec/proj", map[string]string{"1": "true\n"})
	sourceDir, _ := newSourceRepo(t)

	o := order.New("build", origin.Path(), "refs/ci/spec/missing", sourceDir, nil, nil)
	assigned, err := o.Assign("bob")
	require.NoError(t, err)

	t.Cleanup(func() { os.RemoveAll(RepoCachePath(origin.Path())) })
	err = NewExecutor().Execute(assigned)
	assert.ErrorIs(t, err, git.ErrRevisionNotFound)
}
