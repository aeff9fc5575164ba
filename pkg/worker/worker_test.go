package worker

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igor-ci/igor/pkg/build"
	"github.com/igor-ci/igor/pkg/client"
	"github.com/igor-ci/igor/pkg/git"
	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
	"github.com/igor-ci/igor/pkg/server"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	srv := server.NewServer(&server.Config{Addr: "127.0.0.1:0"})
	go srv.ListenAndServe()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		require.True(t, time.Now().Before(deadline), "server did not start")
		time.Sleep(10 * time.Millisecond)
	}
	return srv, srv.Addr().String()
}

func writeSpecRepo(t *testing.T, steps map[string]string) *git.Repository {
	t.Helper()
	repo, err := git.Init(filepath.Join(t.TempDir(), "origin"))
	require.NoError(t, err)

	entries := make([]object.TreeEntry, 0, len(steps))
	for name, script := range steps {
		blob, err := repo.CreateBlob([]byte(script))
		require.NoError(t, err)
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blob})
	}
	stepsTree, err := repo.CreateTree(entries)
	require.NoError(t, err)
	tree, err := repo.CreateTree([]object.TreeEntry{
		{Name: "steps", Mode: filemode.Dir, Hash: stepsTree},
	})
	require.NoError(t, err)
	commit, err := repo.CreateCommit("", "spec", tree, nil, false)
	require.NoError(t, err)
	require.NoError(t, repo.CreateReference("refs/ci/spec/proj", commit))
	return repo
}

func writeSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("file.txt")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestWorkerBuildsOrderEndToEnd(t *testing.T) {
	_, addr := startServer(t)
	origin := writeSpecRepo(t, map[string]string{"1": "echo built\n"})
	sourceDir := writeSourceRepo(t)
	t.Cleanup(func() { os.RemoveAll(build.RepoCachePath(origin.Path())) })

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWorker(&Config{Host: host, Port: port, Parallelism: 1})
	go w.Run(ctx)

	// observe completion through the event stream
	c, err := client.NewClient(addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Subscribe([]string{protocol.EventOrderCompleted}))

	o := order.New("worker e2e", origin.Path(), "refs/ci/spec/proj", sourceDir, nil, nil)
	require.NoError(t, c.CreateOrder(o))

	deadline := time.Now().Add(60 * time.Second)
	for {
		frame, err := c.Next(time.Until(deadline))
		require.NoError(t, err)
		if frame["event"] == protocol.EventOrderCompleted {
			params := frame["params"].(map[string]any)
			assert.Equal(t, o.ID, params["order_id"])
			break
		}
	}

	// the report was pushed to the origin
	reportOID, err := origin.Reference("refs/ci/report/proj")
	require.NoError(t, err)
	report, err := build.ReportFromCommit(origin, reportOID)
	require.NoError(t, err)
	assert.Equal(t, "PASS", report.Result())
	assert.Equal(t, "built\n", string(report.Steps["1"].Stdout))
	assert.Equal(t, o.ID, report.Order.ID)
}
