// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import "fmt"

// ErrRootTreeIdNotFound is returned when the root-tree-id resolver could
// not produce a tree id for a commit the trace required.
type ErrRootTreeIdNotFound struct {
	Commit CommitId
}

func (e *ErrRootTreeIdNotFound) Error() string {
	return fmt.Sprintf("copytrace: root tree id not found for commit %s", e.Commit)
}

// IsErrRootTreeIdNotFound reports whether err is an *ErrRootTreeIdNotFound.
func IsErrRootTreeIdNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrRootTreeIdNotFound)
	return ok
}

// ErrNoParents is returned when the walker reaches a commit with no
// parents but the algorithm requires a first parent (the Manifest Differ
// always needs one to diff against).
type ErrNoParents struct {
	Commit CommitId
}

func (e *ErrNoParents) Error() string {
	return fmt.Sprintf("copytrace: commit %s has no parents", e.Commit)
}

// IsErrNoParents reports whether err is an *ErrNoParents.
func IsErrNoParents(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrNoParents)
	return ok
}

// ErrStore wraps an error propagated verbatim from a DAG, tree, or file
// store collaborator, recording which one failed and on what commit (if
// known) for diagnostic purposes.
type ErrStore struct {
	Collaborator string
	Commit       CommitId
	Err          error
}

func (e *ErrStore) Error() string {
	if e.Commit.IsZero() {
		return fmt.Sprintf("copytrace: %s: %v", e.Collaborator, e.Err)
	}
	return fmt.Sprintf("copytrace: %s on commit %s: %v", e.Collaborator, e.Commit, e.Err)
}

func (e *ErrStore) Unwrap() error {
	return e.Err
}

func wrapStoreError(collaborator string, commit CommitId, err error) error {
	if err == nil {
		return nil
	}
	return &ErrStore{Collaborator: collaborator, Commit: commit, Err: err}
}

// ErrInvalidCommitId is returned when a CommitId byte slice has the wrong
// width.
type ErrInvalidCommitId struct {
	Len int
}

func (e *ErrInvalidCommitId) Error() string {
	return fmt.Sprintf("copytrace: invalid commit id: got %d bytes", e.Len)
}

// IsErrInvalidCommitId reports whether err is an *ErrInvalidCommitId.
func IsErrInvalidCommitId(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrInvalidCommitId)
	return ok
}
