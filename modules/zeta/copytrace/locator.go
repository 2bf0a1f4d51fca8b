// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"
	"io"
)

// renameCommitLocator is a path-history primitive: constructed over a
// commit range and a path, it lazily yields commits in reverse topological
// order, scanning from the descendant end toward the ancestor end, whose
// root manifest entry at path was added or removed versus its first
// parent. The walker only ever consumes the first element, mirroring
// object's commitPathIter (see modules/zeta/object/commit_walker_path.go),
// which the same scan shape is grounded on.
type renameCommitLocator struct {
	path  RepoPath
	roots ReadRootTreeIds
	trees TreeStore
	dag   DagAlgorithm

	commits CommitIter
}

func newRenameCommitLocator(ctx context.Context, rng CommitRange, path RepoPath, roots ReadRootTreeIds, trees TreeStore, dag DagAlgorithm) (*renameCommitLocator, error) {
	commits, err := rng.Commits(ctx)
	if err != nil {
		return nil, wrapStoreError("dag-range", CommitId{}, err)
	}
	return &renameCommitLocator{path: path, roots: roots, trees: trees, dag: dag, commits: commits}, nil
}

// next returns the next commit in the range (starting from the
// descendant end) whose manifest entry at the locator's path was added or
// removed versus its first parent, or io.EOF if the range is exhausted
// without finding one.
func (l *renameCommitLocator) next(ctx context.Context) (CommitId, error) {
	for {
		commit, err := l.commits.Next(ctx)
		if err != nil {
			return CommitId{}, err // io.EOF propagates as-is
		}
		manifest, err := resolveManifest(ctx, commit, l.roots, l.trees)
		if err != nil {
			return CommitId{}, err
		}

		parents, err := l.dag.ParentNames(ctx, commit)
		if err != nil {
			return CommitId{}, wrapStoreError("dag", commit, err)
		}

		changed, err := l.pathChangedVsFirstParent(ctx, commit, manifest, parents)
		if err != nil {
			return CommitId{}, err
		}
		if changed {
			return commit, nil
		}
	}
}

// pathChangedVsFirstParent reports whether path was added or removed at
// commit relative to its first parent. A path present on both sides with
// only its content edited is not a rename event: it carries no RightOnly
// diff entry for the Differ to examine, so treating it as "changed" here
// would make the walker demand rename metadata that was never going to
// exist and sever a history that never broke. Presence changes are the
// only events a rename (or its severing deletion) can produce.
func (l *renameCommitLocator) pathChangedVsFirstParent(ctx context.Context, commit CommitId, manifest Manifest, parents []CommitId) (bool, error) {
	_, presentInCommit, err := manifest.Lookup(ctx, l.path)
	if err != nil {
		return false, wrapStoreError("manifest-lookup", commit, err)
	}

	if len(parents) == 0 {
		// No first parent to diff against: the path "changed" exactly
		// when it is present at all (this is how the file came to be).
		return presentInCommit, nil
	}

	p1 := parents[0]
	p1Manifest, err := resolveManifest(ctx, p1, l.roots, l.trees)
	if err != nil {
		return false, err
	}
	_, presentInParent, err := p1Manifest.Lookup(ctx, l.path)
	if err != nil {
		return false, wrapStoreError("manifest-lookup", p1, err)
	}

	return presentInCommit != presentInParent, nil
}

// locate finds, given a DAG range [from, to] and a path, the first commit
// in topological order starting from "to" that adds or removes path
// relative to its first parent (see pathChangedVsFirstParent), or (zero,
// false, nil) if none does.
func locate(ctx context.Context, dag DagAlgorithm, roots ReadRootTreeIds, trees TreeStore, from, to CommitId, path RepoPath) (CommitId, bool, error) {
	rng, err := dag.Range(ctx, from, to)
	if err != nil {
		return CommitId{}, false, wrapStoreError("dag-range", CommitId{}, err)
	}
	loc, err := newRenameCommitLocator(ctx, rng, path, roots, trees, dag)
	if err != nil {
		return CommitId{}, false, err
	}
	commit, err := loc.next(ctx)
	if err == io.EOF {
		return CommitId{}, false, nil
	}
	if err != nil {
		return CommitId{}, false, err
	}
	return commit, true, nil
}
