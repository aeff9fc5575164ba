package buildsource

import (
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

func init() {
	Register(gitFactory{})
}

type gitFactory struct{}

func (gitFactory) Name() string { return "git" }

// HandlesURI probes the URI by listing its remote refs, the native
// equivalent of git ls-remote.
func (gitFactory) HandlesURI(uri string) bool {
	remote := gogit.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "probe",
		URLs: []string{uri},
	})
	_, err := remote.List(&gogit.ListOptions{})
	return err == nil
}

func (gitFactory) New(uri string, args ...string) Source {
	src := &GitSource{url: uri}
	// args[0], when given, is a tree-ish to check out; without it the
	// clone is left at the remote's HEAD
	if len(args) > 0 {
		src.rev = args[0]
	}
	return src
}

// GitSource fetches a source tree by cloning a git repository.
type GitSource struct {
	url string
	rev string
}

// Checkout clones the repository into dest, checks out the configured
// revision if one was given, and returns the HEAD commit id.
func (s *GitSource) Checkout(dest string) (plumbing.Hash, error) {
	repo, err := gogit.PlainClone(dest, false, &gogit.CloneOptions{URL: s.url})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if s.rev != "" {
		h, err := repo.ResolveRevision(plumbing.Revision(s.rev))
		if err != nil {
			return plumbing.ZeroHash, err
		}
		wt, err := repo.Worktree()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *h}); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	head, err := repo.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return head.Hash(), nil
}
