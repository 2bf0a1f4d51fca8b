// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"
	"io"
)

// differ resolves a rename-bearing commit's RenameMap: diff it against its
// first parent, collect the new-side candidates, and resolve their rename
// predecessors.
type differ struct {
	roots ReadRootTreeIds
	trees TreeStore
	dag   DagAlgorithm
	files ReadFileContents
}

// findRenamesAt diffs commit against its first parent and returns the
// RenameMap oriented per direction, together with the next commit the
// walker should advance to (p1 for Backward, commit itself for Forward —
// Forward doesn't move the DAG position, only the path, because the
// rename already materialized at commit).
func (d *differ) findRenamesAt(ctx context.Context, commit CommitId, direction SearchDirection) (RenameMap, CommitId, error) {
	parents, err := d.dag.ParentNames(ctx, commit)
	if err != nil {
		return nil, CommitId{}, wrapStoreError("dag", commit, err)
	}
	if len(parents) == 0 {
		return nil, CommitId{}, &ErrNoParents{Commit: commit}
	}
	p1 := parents[0]

	oldManifest, err := resolveManifest(ctx, p1, d.roots, d.trees)
	if err != nil {
		return nil, CommitId{}, err
	}
	newManifest, err := resolveManifest(ctx, commit, d.roots, d.trees)
	if err != nil {
		return nil, CommitId{}, err
	}

	raw, err := d.findRenames(ctx, commit, oldManifest, newManifest)
	if err != nil {
		return nil, CommitId{}, err
	}

	if direction == Backward {
		return raw, p1, nil
	}
	return raw.invert(), commit, nil
}

// findRenames diffs old against new and resolves rename predecessors for
// every RightOnly entry. Only RightOnly entries are examined: a rename
// materializes as a new file on the destination side carrying a
// predecessor pointer; the old side appears as LeftOnly but the
// predecessor link on the new side is authoritative, so it needs no
// separate inspection.
func (d *differ) findRenames(ctx context.Context, commit CommitId, oldManifest, newManifest Manifest) (RenameMap, error) {
	diffIter, err := oldManifest.Diff(ctx, newManifest)
	if err != nil {
		return nil, wrapStoreError("manifest-diff", commit, err)
	}

	var newFiles []FileKey
	for {
		entry, err := diffIter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapStoreError("manifest-diff", commit, err)
		}
		if entry.Kind != RightOnly {
			continue
		}
		newFiles = append(newFiles, FileKey{Path: entry.Path, ContentHash: entry.Right})
	}

	reader := &metadataReader{files: d.files}
	resolved, err := reader.read(ctx, newFiles)
	if err != nil {
		return nil, wrapStoreError("file-store", commit, err)
	}

	candidates := make([]renameCandidate, 0, len(resolved))
	for newPath, oldPath := range resolved {
		candidates = append(candidates, renameCandidate{newPath: newPath, oldPath: oldPath})
	}
	return newRenameMap(candidates), nil
}
