// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"

	"github.com/antgroup/hugescm/modules/trace"
)

// walker is the linear step engine shared by both trace directions: find
// the nearest rename-bearing commit along a range, fold in its RenameMap,
// and advance curr/currPath until the range is exhausted or the path's
// rename chain breaks.
type walker struct {
	roots ReadRootTreeIds
	trees TreeStore
	dag   DagAlgorithm
	files ReadFileContents
}

// locateRenameCommit finds the nearest commit in [target, curr] that
// changed path, scanning from curr toward target.
func (w *walker) locateRenameCommit(ctx context.Context, target, curr CommitId, path RepoPath) (CommitId, bool, error) {
	return locate(ctx, w.dag, w.roots, w.trees, target, curr, path)
}

// checkPath reports whether path exists in commit's tree, returning path
// itself when it does. This is the terminal step once no further
// rename-bearing commit remains in range: the path either survived
// unrenamed all the way to the endpoint, or it does not exist there.
func (w *walker) checkPath(ctx context.Context, commit CommitId, path RepoPath) (RepoPath, bool, error) {
	manifest, err := resolveManifest(ctx, commit, w.roots, w.trees)
	if err != nil {
		return "", false, err
	}
	_, present, err := manifest.Lookup(ctx, path)
	if err != nil {
		return "", false, wrapStoreError("manifest-lookup", commit, err)
	}
	if !present {
		return "", false, nil
	}
	return path, true, nil
}

// traceBackward walks from dst toward src, following rename predecessors,
// to find the path's name at src. dstPath is valid at dst.
func (w *walker) traceBackward(ctx context.Context, src, dst CommitId, dstPath RepoPath) (RepoPath, bool, error) {
	curr, target, currPath := dst, src, dstPath

	for {
		trace.DbgPrint("copytrace: backward step curr=%s path=%s", curr, currPath)
		renameCommit, found, err := w.locateRenameCommit(ctx, target, curr, currPath)
		if err != nil {
			return "", false, err
		}
		if !found {
			return w.checkPath(ctx, target, currPath)
		}

		if renameCommit == target {
			return currPath, true, nil
		}

		differ := &differ{roots: w.roots, trees: w.trees, dag: w.dag, files: w.files}
		renames, nextCommit, err := differ.findRenamesAt(ctx, renameCommit, Backward)
		if err != nil {
			return "", false, err
		}
		nextPath, ok := renames[currPath]
		if !ok {
			return "", false, nil
		}
		curr, currPath = nextCommit, nextPath
	}
}

// traceForward walks from src toward dst, following rename successors, to
// find the path's name at dst. srcPath is valid at src.
func (w *walker) traceForward(ctx context.Context, src, dst CommitId, srcPath RepoPath) (RepoPath, bool, error) {
	curr, target, currPath := src, dst, srcPath

	for {
		trace.DbgPrint("copytrace: forward step curr=%s path=%s", curr, currPath)
		renameCommit, found, err := w.locateRenameCommit(ctx, curr, target, currPath)
		if err != nil {
			return "", false, err
		}
		if !found {
			return w.checkPath(ctx, target, currPath)
		}

		if renameCommit == curr {
			return currPath, true, nil
		}

		differ := &differ{roots: w.roots, trees: w.trees, dag: w.dag, files: w.files}
		renames, nextCommit, err := differ.findRenamesAt(ctx, renameCommit, Forward)
		if err != nil {
			return "", false, err
		}
		nextPath, ok := renames[currPath]
		if !ok {
			return "", false, nil
		}
		curr, currPath = nextCommit, nextPath
	}
}
