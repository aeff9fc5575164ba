package build

import (
	"bytes"
	"errors"
	"os/exec"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/igor-ci/igor/pkg/git"
)

// Step is a single step in a build: a shell script fed to /bin/sh on stdin.
// Two steps are equal iff their scripts are byte-equal.
type Step struct {
	Script []byte
}

// StepFromBlob loads a step from a blob in the given repository.
func StepFromBlob(repo *git.Repository, oid plumbing.Hash) (Step, error) {
	data, err := repo.BlobData(oid)
	if err != nil {
		return Step{}, err
	}
	return Step{Script: data}, nil
}

// Equal reports whether two steps have byte-equal scripts.
func (s Step) Equal(other Step) bool {
	return bytes.Equal(s.Script, other.Script)
}

// Execute runs the step in dir with the given environment, returning its
// report. A non-zero exit is not an error; only failure to spawn the shell
// is.
func (s Step) Execute(env map[string]string, dir string) (StepReport, error) {
	tStart := unixNow()

	cmd := exec.Command("/bin/sh")
	cmd.Stdin = bytes.NewReader(s.Script)
	cmd.Dir = dir
	cmd.Env = envList(env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exit := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return StepReport{}, err
		}
		exit = exitErr.ExitCode()
	}

	return StepReport{
		Exit:    exit,
		TStart:  tStart,
		TFinish: unixNow(),
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}, nil
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
