package git

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Init(filepath.Join(t.TempDir(), "repo"))
	require.NoError(t, err)
	return repo
}

// writeCommit writes a one-blob tree and a commit over it, returning the
// commit id.
func writeCommit(t *testing.T, repo *Repository, msg, content string) plumbing.Hash {
	t.Helper()
	blob, err := repo.CreateBlob([]byte(content))
	require.NoError(t, err)
	tree, err := repo.CreateTree([]object.TreeEntry{
		{Name: "file", Mode: filemode.Regular, Hash: blob},
	})
	require.NoError(t, err)
	commit, err := repo.CreateCommit("", msg, tree, nil, false)
	require.NoError(t, err)
	return commit
}

func TestNullReportDeterministic(t *testing.T) {
	a, err := newTestRepo(t).NullReport()
	require.NoError(t, err)
	b, err := newTestRepo(t).NullReport()
	require.NoError(t, err)

	assert.Equal(t, a, b, "null report must have the same id in any repo")
}

func TestNullReportIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	a, err := repo.NullReport()
	require.NoError(t, err)
	b, err := repo.NullReport()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNullReportShape(t *testing.T) {
	repo := newTestRepo(t)
	oid, err := repo.NullReport()
	require.NoError(t, err)

	commit, err := repo.Commit(oid)
	require.NoError(t, err)
	assert.Equal(t, NullReportMessage, commit.Message)
	assert.Empty(t, commit.ParentHashes)
	assert.Equal(t, int64(0), commit.Author.When.Unix())
	assert.Equal(t, SignatureName, commit.Author.Name)
	assert.Equal(t, SignatureEmail, commit.Author.Email)

	tree, err := commit.Tree()
	require.NoError(t, err)
	assert.Empty(t, tree.Entries)
}

func TestRevparseSingleVerbatim(t *testing.T) {
	repo := newTestRepo(t)
	commit := writeCommit(t, repo, "c", "x")
	require.NoError(t, repo.CreateReference("refs/ci/spec/proj", commit))

	h, err := repo.RevparseSingle("refs/ci/spec/proj")
	require.NoError(t, err)
	assert.Equal(t, commit, h)
}

func TestRevparseSingleHeuristics(t *testing.T) {
	repo := newTestRepo(t)
	spec := writeCommit(t, repo, "spec", "s")
	report := writeCommit(t, repo, "report", "r")
	require.NoError(t, repo.CreateReference("refs/ci/spec/proj", spec))
	require.NoError(t, repo.CreateReference("refs/ci/report/proj", report))

	// bare tail name: the spec namespace wins over the report namespace
	h, err := repo.RevparseSingle("proj")
	require.NoError(t, err)
	assert.Equal(t, spec, h)

	h, err = repo.RevparseSingle("spec/proj")
	require.NoError(t, err)
	assert.Equal(t, spec, h)

	h, err = repo.RevparseSingle("report/proj")
	require.NoError(t, err)
	assert.Equal(t, report, h)
}

func TestRevparseSingleNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.RevparseSingle("no-such-rev")
	assert.ErrorIs(t, err, ErrRevisionNotFound)
}

func TestPeelCommitToTree(t *testing.T) {
	repo := newTestRepo(t)
	oid := writeCommit(t, repo, "c", "x")
	commit, err := repo.Commit(oid)
	require.NoError(t, err)

	peeled, err := repo.Peel(commit, plumbing.TreeObject)
	require.NoError(t, err)
	assert.Equal(t, plumbing.TreeObject, peeled.Type())

	// a commit peels to itself
	same, err := repo.Peel(commit, plumbing.CommitObject)
	require.NoError(t, err)
	assert.Equal(t, commit, same)
}

func TestPeelBlobToCommitFails(t *testing.T) {
	repo := newTestRepo(t)
	oid, err := repo.CreateBlob([]byte("x"))
	require.NoError(t, err)
	obj, err := repo.Object(oid)
	require.NoError(t, err)

	_, err = repo.Peel(obj, plumbing.CommitObject)
	var perr *PeelError
	assert.ErrorAs(t, err, &perr)
}

func TestCreateTreeSortsEntries(t *testing.T) {
	repo := newTestRepo(t)
	blob, err := repo.CreateBlob([]byte("x"))
	require.NoError(t, err)

	oid, err := repo.CreateTree([]object.TreeEntry{
		{Name: "b", Mode: filemode.Regular, Hash: blob},
		{Name: "a", Mode: filemode.Regular, Hash: blob},
	})
	require.NoError(t, err)

	tree, err := repo.Tree(oid)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	assert.Equal(t, "a", tree.Entries[0].Name)
	assert.Equal(t, "b", tree.Entries[1].Name)
}

func TestCloneFetchesCIRefs(t *testing.T) {
	origin := newTestRepo(t)
	spec := writeCommit(t, origin, "spec", "s")
	require.NoError(t, origin.CreateReference("refs/ci/spec/proj", spec))
	// a ref outside the CI namespaces must not be fetched
	require.NoError(t, origin.CreateReference("refs/heads/master", spec))

	dest := filepath.Join(t.TempDir(), "clone")
	repo, err := Clone(origin.Path(), dest)
	require.NoError(t, err)

	h, err := repo.Reference("refs/ci/spec/proj")
	require.NoError(t, err)
	assert.Equal(t, spec, h)

	_, err = repo.Reference("refs/heads/master")
	assert.Error(t, err)
}

func TestCloneOrOpenReopens(t *testing.T) {
	origin := newTestRepo(t)
	spec := writeCommit(t, origin, "spec", "s")
	require.NoError(t, origin.CreateReference("refs/ci/spec/proj", spec))

	dest := filepath.Join(t.TempDir(), "clone")
	_, err := CloneOrOpen(origin.Path(), dest)
	require.NoError(t, err)

	again, err := CloneOrOpen(origin.Path(), dest)
	require.NoError(t, err)
	h, err := again.Reference("refs/ci/spec/proj")
	require.NoError(t, err)
	assert.Equal(t, spec, h)
}

func TestPushContention(t *testing.T) {
	origin := newTestRepo(t)
	const ref = "refs/ci/report/proj"

	cloneA, err := Clone(origin.Path(), filepath.Join(t.TempDir(), "a"))
	require.NoError(t, err)
	cloneB, err := Clone(origin.Path(), filepath.Join(t.TempDir(), "b"))
	require.NoError(t, err)

	commitA := writeCommit(t, cloneA, "a", "a")
	require.NoError(t, cloneA.CreateReference(ref, commitA))
	ok, err := cloneA.Push(ref)
	require.NoError(t, err)
	assert.True(t, ok)

	// B is stale: its candidate does not descend from A's push
	commitB := writeCommit(t, cloneB, "b", "b")
	require.NoError(t, cloneB.CreateReference(ref, commitB))
	ok, err = cloneB.Push(ref)
	require.NoError(t, err)
	assert.False(t, ok, "stale push must be a normal rejection, not an error")

	// after a refetch a descendant push succeeds
	require.NoError(t, cloneB.Fetch())
	prev, err := cloneB.Reference(ref)
	require.NoError(t, err)
	assert.Equal(t, commitA, prev)

	blob, err := cloneB.CreateBlob([]byte("b2"))
	require.NoError(t, err)
	tree, err := cloneB.CreateTree([]object.TreeEntry{
		{Name: "file", Mode: filemode.Regular, Hash: blob},
	})
	require.NoError(t, err)
	commitB2, err := cloneB.CreateCommit("", "b2", tree, []plumbing.Hash{prev}, false)
	require.NoError(t, err)
	require.NoError(t, cloneB.CreateReference(ref, commitB2))
	ok, err = cloneB.Push(ref)
	require.NoError(t, err)
	assert.True(t, ok)

	h, err := origin.Reference(ref)
	require.NoError(t, err)
	assert.Equal(t, commitB2, h)
}

func TestTailRef(t *testing.T) {
	assert.Equal(t, "proj", TailRef("refs/ci/spec/proj"))
	assert.Equal(t, "proj", TailRef("proj"))
	assert.Equal(t, []string{"refs", "ci", "spec", "proj"}, SplitRef("refs/ci/spec/proj"))
}
