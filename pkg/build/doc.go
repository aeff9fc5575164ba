/*
Package build implements build specifications, their execution, and build
reports materialised as git trees.

A spec is loaded from a commit whose tree contains a steps/ subtree of
blobs, one shell script per step; step names sort to the execution order.
Executing a spec for an assigned order runs each step under /bin/sh with
the merged environment (process env, spec overlay, order env), stops at the
first failure, and yields a report.

A report is written as a commit whose tree holds the order and env as
canonical JSON blobs, the PASS/FAIL result, and one subtree per step with
exit, t_start, t_finish, stdout and stderr blobs. Its parents chain it to
the previous report on the same ref, the spec commit, and optionally the
built source commit.

The Executor publishes reports with a compare-and-swap loop: fetch, write
the report over the current tip, force the local ref, push; a rejected
non-fast-forward push refetches and rewrites. Every published report is an
ancestor of or equal to the next one on the same ref.
*/
package build
