package git

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Committer identity used for every commit igor writes.
const (
	SignatureName  = "Igor CI"
	SignatureEmail = "igor-ci@frase.id.au"
)

// NullReportMessage is the fixed message of the parentless null-report
// commit. Together with the empty tree and the epoch signature it makes the
// null report's object id deterministic across repositories.
const NullReportMessage = "[NULL] null build report"

// Fetch refspecs restricting origin to the CI namespaces.
var ciRefSpecs = []config.RefSpec{
	config.RefSpec("+refs/ci/spec/*:refs/ci/spec/*"),
	config.RefSpec("+refs/ci/report/*:refs/ci/report/*"),
}

// ErrRevisionNotFound is returned by RevparseSingle when no heuristic
// resolves the revision.
var ErrRevisionNotFound = errors.New("revision not found")

// Repository is a git repository with igor extensions: CI-only origin
// refspecs, the null report, canonical object writers and revparse
// heuristics over the CI namespaces.
type Repository struct {
	repo *gogit.Repository
	path string
}

// Path returns the filesystem path the repository was opened at.
func (r *Repository) Path() string { return r.path }

// Signature returns igor's committer signature at the given time.
func Signature(when time.Time) object.Signature {
	return object.Signature{
		Name:  SignatureName,
		Email: SignatureEmail,
		When:  when,
	}
}

// Open opens the repository at path.
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return &Repository{repo: repo, path: path}, nil
}

// Init creates an empty bare repository at path.
func Init(path string) (*Repository, error) {
	repo, err := gogit.PlainInit(path, true)
	if err != nil {
		return nil, err
	}
	return &Repository{repo: repo, path: path}, nil
}

// Clone initialises a bare repository at dest with source as origin,
// restricted to the CI refspecs, and fetches.
//
// Init then fetch, rather than a full clone, so that only the CI namespaces
// are configured and transferred.
func Clone(source, dest string) (*Repository, error) {
	repo, err := gogit.PlainInit(dest, true)
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", dest, err)
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name:  "origin",
		URLs:  []string{source},
		Fetch: ciRefSpecs,
	})
	if err != nil {
		return nil, fmt.Errorf("create remote: %w", err)
	}
	r := &Repository{repo: repo, path: dest}
	if err := r.Fetch(); err != nil {
		return nil, err
	}
	return r, nil
}

// CloneOrOpen opens the repository at dest if one exists, else clones.
func CloneOrOpen(source, dest string) (*Repository, error) {
	r, err := Open(dest)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return Clone(source, dest)
	}
	return r, err
}

// Fetch updates the CI refs from origin. An up-to-date or empty origin is
// not an error.
func (r *Repository) Fetch() error {
	err := r.repo.Fetch(&gogit.FetchOptions{RemoteName: "origin"})
	switch {
	case err == nil,
		errors.Is(err, gogit.NoErrAlreadyUpToDate),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return nil
	}
	return fmt.Errorf("fetch origin: %w", err)
}

// Push pushes the given ref to origin. It returns true on success and false
// when the remote rejected a non-fast-forward update (the caller should
// refetch and retry); any other failure is returned as an error.
func (r *Repository) Push(ref string) (bool, error) {
	err := r.repo.Push(&gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return true, nil
	case strings.Contains(err.Error(), "non-fast-forward"):
		return false, nil
	case errors.Is(err, plumbing.ErrObjectNotFound),
		strings.Contains(err.Error(), "object not found"):
		// the remote tip advanced past our last fetch; the fast-forward
		// check cannot see it yet, so treat as a rejected update
		return false, nil
	}
	return false, fmt.Errorf("push %s: %w", ref, err)
}

// CreateBlob writes data as a blob and returns its id.
func (r *Repository) CreateBlob(data []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// CreateTree writes a tree with the given entries, sorting them the way git
// sorts tree entries (directories compare with a trailing slash).
func (r *Repository) CreateTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	sorted := make([]object.TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeEntryKey(sorted[i]) < treeEntryKey(sorted[j])
	})
	tree := &object.Tree{Entries: sorted}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

func treeEntryKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// NullTree returns the id of the empty tree.
func (r *Repository) NullTree() (plumbing.Hash, error) {
	return r.CreateTree(nil)
}

// NullReport writes the deterministic parentless empty-tree commit and
// returns its id. Writing it again is idempotent: the object id never
// changes.
func (r *Repository) NullReport() (plumbing.Hash, error) {
	tree, err := r.NullTree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return r.CreateCommit("", NullReportMessage, tree, nil, true)
}

// CreateCommit writes a commit with igor's signature. When epoch is true the
// author and committer times are the UNIX epoch, making the commit
// deterministic. If ref is non-empty it is pointed at the new commit.
func (r *Repository) CreateCommit(ref, msg string, tree plumbing.Hash, parents []plumbing.Hash, epoch bool) (plumbing.Hash, error) {
	when := time.Now()
	if epoch {
		when = time.Unix(0, 0).UTC()
	}
	sig := Signature(when)
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if ref != "" {
		if err := r.CreateReference(ref, h); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return h, nil
}

// CreateReference force-updates the named ref to point at h.
func (r *Repository) CreateReference(name string, h plumbing.Hash) error {
	return r.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.ReferenceName(name), h))
}

// Reference resolves the named ref to a hash.
func (r *Repository) Reference(name string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// RevparseSingle resolves rev with igor's extended rules: the revision is
// tried verbatim, then prefixed with "ci/", "ci/spec/" and "ci/report/", in
// that order. The spec namespace is always tried before the report
// namespace; the first match wins.
func (r *Repository) RevparseSingle(rev string) (plumbing.Hash, error) {
	candidates := []string{
		rev,
		"ci/" + rev,
		"ci/spec/" + rev,
		"ci/report/" + rev,
	}
	for _, c := range candidates {
		if h, err := r.repo.ResolveRevision(plumbing.Revision(c)); err == nil {
			return *h, nil
		}
		// revision resolution does not search refs outside the standard
		// namespaces, so try the ref name directly as well
		if h, err := r.Reference("refs/" + c); err == nil {
			return h, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrRevisionNotFound, rev)
}

// Object returns the object with the given id.
func (r *Repository) Object(h plumbing.Hash) (object.Object, error) {
	return object.GetObject(r.repo.Storer, h)
}

// Commit returns the commit with the given id.
func (r *Repository) Commit(h plumbing.Hash) (*object.Commit, error) {
	return object.GetCommit(r.repo.Storer, h)
}

// Tree returns the tree with the given id.
func (r *Repository) Tree(h plumbing.Hash) (*object.Tree, error) {
	return object.GetTree(r.repo.Storer, h)
}

// BlobData returns the content of the blob with the given id.
func (r *Repository) BlobData(h plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(r.repo.Storer, h)
	if err != nil {
		return nil, err
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// HasObject reports whether the object with the given id is present.
func (r *Repository) HasObject(h plumbing.Hash) bool {
	return r.repo.Storer.HasEncodedObject(h) == nil
}

// SplitRef splits a ref name into its components.
func SplitRef(ref string) []string {
	return strings.Split(ref, "/")
}

// TailRef returns the last component of a ref name.
func TailRef(ref string) string {
	parts := SplitRef(ref)
	return parts[len(parts)-1]
}
