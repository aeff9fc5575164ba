package build

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/igor-ci/igor/pkg/buildsource"
	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/order"
)

// Executor runs build orders end to end: load the spec, check out the
// source, run the steps and publish the report.
type Executor struct {
	logger zerolog.Logger
}

// NewExecutor creates an executor.
func NewExecutor() *Executor {
	return &Executor{logger: log.WithComponent("executor")}
}

// RepoCachePath maps a spec repository URI to its deterministic local cache
// path. URIs beginning with "/" or "." are treated as file paths and
// absolutised first so that equivalent paths share a cache; any other URI,
// including a relative path without a leading ".", is hashed as given. The
// fingerprint is FNV-1a 64, stable across runs.
func RepoCachePath(uri string) string {
	if strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, ".") {
		if abs, err := filepath.Abs(uri); err == nil {
			uri = abs
		}
	}
	h := fnv.New64a()
	h.Write([]byte(uri))
	return fmt.Sprintf("/tmp/igor%d", h.Sum64())
}

// Execute runs the order: fetch the spec repository into its cache, load
// the spec, check out the source into a scoped temporary directory, run the
// steps, and publish the report with a compare-and-swap push loop against
// origin. Build failures are not errors; they surface as FAIL reports.
func (e *Executor) Execute(o order.Order) error {
	logger := e.logger.With().Str("order_id", o.ID).Logger()

	repoPath := RepoCachePath(o.SpecURI)
	logger.Debug().Str("path", repoPath).Msg("using local spec repo")
	repo, err := git.CloneOrOpen(o.SpecURI, repoPath)
	if err != nil {
		return fmt.Errorf("open spec repo %s: %w", o.SpecURI, err)
	}
	if err := repo.Fetch(); err != nil {
		return err
	}
	spec, err := SpecFromRef(repo, o.SpecRef)
	if err != nil {
		return fmt.Errorf("load spec %s: %w", o.SpecRef, err)
	}

	// shortcut: clone from cache when spec and source are the same repo
	sourceURI := o.SourceURI
	if sourceURI == o.SpecURI {
		sourceURI = repoPath
	}
	source, err := buildsource.ForURI(sourceURI, o.SourceArgs...)
	if err != nil {
		return err
	}

	reportRef := "refs/ci/report/" + git.TailRef(o.SpecRef)

	dir, err := os.MkdirTemp("", "igor-src-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	sourceOID, err := source.Checkout(dir)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", sourceURI, err)
	}
	report, err := spec.Execute(o, sourceOID, dir)
	if err != nil {
		return err
	}
	metrics.BuildsTotal.WithLabelValues(report.Result()).Inc()

	return e.publish(repo, reportRef, report, logger)
}

// publish writes the report succeeding the current tip of reportRef and
// pushes. On a non-fast-forward rejection the refs are refetched and the
// report rewritten onto the new tip; the loop converges once a push lands.
func (e *Executor) publish(repo *git.Repository, reportRef string, report Report, logger zerolog.Logger) error {
	for {
		if err := repo.Fetch(); err != nil {
			return err
		}
		prev, err := e.prevOID(repo, reportRef)
		if err != nil {
			return err
		}
		if prev == plumbing.ZeroHash {
			if prev, err = repo.NullReport(); err != nil {
				return err
			}
		}
		logger.Info().Str("prev", prev.String()[:7]).Msg("writing report")
		commit, err := report.Write(repo, prev)
		if err != nil {
			return err
		}
		if err := repo.CreateReference(reportRef, commit); err != nil {
			return err
		}
		pushed, err := repo.Push(reportRef)
		if err != nil {
			return err
		}
		if pushed {
			logger.Info().Str("ref", reportRef).Str("commit", commit.String()[:7]).
				Str("result", report.Result()).Msg("report published")
			return nil
		}
		logger.Debug().Str("ref", reportRef).Msg("push rejected, retrying")
	}
}

// prevOID resolves the current report commit on ref, or the zero hash when
// the ref does not exist or names a non-commit.
func (e *Executor) prevOID(repo *git.Repository, ref string) (plumbing.Hash, error) {
	h, err := repo.RevparseSingle(ref)
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	if _, err := repo.Commit(h); err != nil {
		e.logger.Warn().Str("ref", ref).Msg("report ref names a non-commit object")
		return plumbing.ZeroHash, nil
	}
	return h, nil
}
