// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"
	"io"

	"github.com/antgroup/hugescm/modules/plumbing"
)

// DagAlgorithm is the commit-graph engine the tracer consumes: ancestry
// tests, first-parent lookup, range enumeration and greatest-common-
// ancestor. Any collaborator providing these is acceptable; the tracer
// never constructs a DAG itself.
type DagAlgorithm interface {
	// IsAncestor reports whether a is an ancestor of (or equal to) b.
	IsAncestor(ctx context.Context, a, b CommitId) (bool, error)
	// ParentNames returns c's parents in order; index 0 is the first
	// parent.
	ParentNames(ctx context.Context, c CommitId) ([]CommitId, error)
	// Range returns the commits reachable walking from "from" toward "to"
	// along parent/child edges, inclusive of both endpoints.
	Range(ctx context.Context, from, to CommitId) (CommitRange, error)
	// GCAOne returns one greatest common ancestor of the given commits, or
	// false if none exists (unrelated histories) — never an error for
	// that case.
	GCAOne(ctx context.Context, ids []CommitId) (CommitId, bool, error)
}

// CommitRange is the result of DagAlgorithm.Range: an enumerable,
// reusable view of the commit set between two endpoints.
type CommitRange interface {
	// Commits yields the commits in the range in reverse topological
	// order, starting from the descendant end ("to" in the Range call
	// that produced this CommitRange) and walking toward the ancestor
	// end. Each call returns a fresh iterator positioned at the start.
	Commits(ctx context.Context) (CommitIter, error)
}

// CommitIter yields CommitId values one at a time. Next returns io.EOF
// once exhausted, matching the rest of the codebase's iterator
// convention (object.CommitIter, object.FileIter).
type CommitIter interface {
	Next(ctx context.Context) (CommitId, error)
}

// CommitTreeId pairs a commit with the id of its root tree.
type CommitTreeId struct {
	Commit CommitId
	Tree   plumbing.Hash
}

// ReadRootTreeIds resolves commits to their root tree ids in batch.
// Implementations return fewer entries than requested when some commits
// lack a root tree (e.g. not yet committed, or unknown to the store); the
// tracer turns a missing entry into ErrRootTreeIdNotFound.
type ReadRootTreeIds interface {
	ReadRootTreeIds(ctx context.Context, commits []CommitId) ([]CommitTreeId, error)
}

// Manifest is a logical handle onto a commit's file tree.
type Manifest interface {
	// Lookup reports whether path exists in the tree, and its FileKey if
	// so.
	Lookup(ctx context.Context, path RepoPath) (FileKey, bool, error)
	// Diff compares this manifest (treated as the left/older side) against
	// other (the right/newer side) under an always-match predicate,
	// returning a lazy sequence of DiffEntry values.
	Diff(ctx context.Context, other Manifest) (DiffIter, error)
}

// DiffIter yields DiffEntry values one at a time, io.EOF terminated.
type DiffIter interface {
	Next(ctx context.Context) (*DiffEntry, error)
}

// TreeStore constructs durable Manifest handles from tree ids and, during
// diffing, may prefetch child trees in batch.
type TreeStore interface {
	Manifest(ctx context.Context, tree plumbing.Hash) (Manifest, error)
}

// RenameLookup is the result of resolving one FileKey's rename header: the
// key that was looked up, and its predecessor key if the header names one.
type RenameLookup struct {
	Key         FileKey
	Predecessor *FileKey
}

// RenameLookupIter yields RenameLookup values, io.EOF terminated. It
// models the lazy asynchronous stream the file store returns in response
// to a batch rename-metadata query.
type RenameLookupIter interface {
	Next(ctx context.Context) (*RenameLookup, error)
}

// ReadFileContents resolves per-file rename headers against the file
// store. A key whose blob carries no rename header is either absent from
// the stream or present with a nil Predecessor; neither is an error.
type ReadFileContents interface {
	ReadRenameMetadata(ctx context.Context, keys []FileKey) (RenameLookupIter, error)
}

// sliceCommitIter adapts a pre-materialized []CommitId to CommitIter, for
// collaborators whose Range is cheap enough to enumerate eagerly.
type sliceCommitIter struct {
	ids []CommitId
	pos int
}

// NewSliceCommitIter returns a CommitIter over an already-known, ordered
// slice of commit ids.
func NewSliceCommitIter(ids []CommitId) CommitIter {
	return &sliceCommitIter{ids: ids}
}

func (it *sliceCommitIter) Next(ctx context.Context) (CommitId, error) {
	select {
	case <-ctx.Done():
		return CommitId{}, ctx.Err()
	default:
	}
	if it.pos >= len(it.ids) {
		return CommitId{}, io.EOF
	}
	id := it.ids[it.pos]
	it.pos++
	return id, nil
}
