// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"

	"github.com/antgroup/hugescm/modules/trace"
)

// Tracer answers "what did srcPath at src become (or used to be) at dst?"
// across arbitrary commit ancestry: src an ancestor of dst, dst an
// ancestor of src, or neither (unrelated history, resolved through their
// greatest common ancestor).
type Tracer struct {
	roots ReadRootTreeIds
	trees TreeStore
	dag   DagAlgorithm
	files ReadFileContents
}

// NewTracer assembles a Tracer from its four collaborators: a root-tree
// resolver, a tree store, a commit-graph algorithm, and a rename-metadata
// reader.
func NewTracer(roots ReadRootTreeIds, trees TreeStore, dag DagAlgorithm, files ReadFileContents) *Tracer {
	return &Tracer{roots: roots, trees: trees, dag: dag, files: files}
}

func (t *Tracer) walker() *walker {
	return &walker{roots: t.roots, trees: t.trees, dag: t.dag, files: t.files}
}

// TraceRename resolves srcPath (valid at src) to its corresponding path at
// dst, or reports false if no such correspondence exists.
func (t *Tracer) TraceRename(ctx context.Context, src, dst CommitId, srcPath RepoPath) (RepoPath, bool, error) {
	trace.DbgPrint("copytrace: trace-rename src=%s dst=%s path=%s", src, dst, srcPath)

	srcIsAncestor, err := t.dag.IsAncestor(ctx, src, dst)
	if err != nil {
		return "", false, wrapStoreError("dag", src, err)
	}
	if srcIsAncestor {
		return t.TraceRenameForward(ctx, src, dst, srcPath)
	}

	dstIsAncestor, err := t.dag.IsAncestor(ctx, dst, src)
	if err != nil {
		return "", false, wrapStoreError("dag", dst, err)
	}
	if dstIsAncestor {
		return t.TraceRenameBackward(ctx, dst, src, srcPath)
	}

	base, found, err := t.dag.GCAOne(ctx, []CommitId{src, dst})
	if err != nil {
		return "", false, wrapStoreError("dag", src, err)
	}
	if !found {
		trace.DbgPrint("copytrace: no common ancestor for %s and %s", src, dst)
		return "", false, nil
	}
	trace.DbgPrint("copytrace: split at gca=%s", base)

	basePath, ok, err := t.TraceRenameBackward(ctx, base, src, srcPath)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return t.TraceRenameForward(ctx, base, dst, basePath)
}

// TraceRenameBackward resolves dstPath (valid at dst) to its name at the
// ancestor src, following rename predecessors toward the past.
func (t *Tracer) TraceRenameBackward(ctx context.Context, src, dst CommitId, dstPath RepoPath) (RepoPath, bool, error) {
	return t.walker().traceBackward(ctx, src, dst, dstPath)
}

// TraceRenameForward resolves srcPath (valid at src) to its name at the
// descendant dst, following rename successors toward the future.
func (t *Tracer) TraceRenameForward(ctx context.Context, src, dst CommitId, srcPath RepoPath) (RepoPath, bool, error) {
	return t.walker().traceForward(ctx, src, dst, srcPath)
}
