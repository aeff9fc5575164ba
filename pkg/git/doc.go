/*
Package git is a CI-shaped facade over go-git.

It provides the small repository surface the rest of igor needs: bare clone
or open with the origin restricted to the CI ref namespaces, fetch and push
wrappers, blob/tree/commit writers using igor's fixed committer signature,
the deterministic null-report commit, object peeling, revision resolution
with the CI heuristics, and canonical JSON helpers.

# Ref namespaces

Build specs live under refs/ci/spec/ and build reports under
refs/ci/report/. A cloned repository fetches exactly these from origin:

	+refs/ci/spec/*:refs/ci/spec/*
	+refs/ci/report/*:refs/ci/report/*

# Revision resolution

RevparseSingle tries the revision verbatim, then under "ci/", "ci/spec/"
and "ci/report/". The spec namespace always wins over the report namespace
when both contain the same tail name.

# Push semantics

Push distinguishes a rejected non-fast-forward update (false, nil; the
caller refetches and retries) from abnormal failure (error). This carries
the compare-and-swap publish loop in pkg/build.
*/
package git
