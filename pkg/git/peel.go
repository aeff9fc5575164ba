package git

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// PeelError reports that an object could not be peeled to the target type.
type PeelError struct {
	From plumbing.ObjectType
	To   plumbing.ObjectType
}

func (e *PeelError) Error() string {
	return fmt.Sprintf("cannot peel %s to %s", e.From, e.To)
}

// Peel follows an object until one of the target type is reached: commits
// peel to their tree, tags to their target; blobs, trees and commits are
// terminal. References are resolved to objects before peeling (see
// RevparseSingle).
func (r *Repository) Peel(obj object.Object, target plumbing.ObjectType) (object.Object, error) {
	for {
		if obj.Type() == target {
			return obj, nil
		}
		switch v := obj.(type) {
		case *object.Commit:
			if target != plumbing.TreeObject {
				return nil, &PeelError{From: obj.Type(), To: target}
			}
			tree, err := v.Tree()
			if err != nil {
				return nil, err
			}
			obj = tree
		case *object.Tag:
			next, err := v.Object()
			if err != nil {
				return nil, err
			}
			obj = next
		default:
			return nil, &PeelError{From: obj.Type(), To: target}
		}
	}
}

// PeelToCommit resolves the object with the given id to a commit, following
// tags as needed.
func (r *Repository) PeelToCommit(h plumbing.Hash) (*object.Commit, error) {
	obj, err := r.Object(h)
	if err != nil {
		return nil, err
	}
	peeled, err := r.Peel(obj, plumbing.CommitObject)
	if err != nil {
		return nil, err
	}
	return peeled.(*object.Commit), nil
}
