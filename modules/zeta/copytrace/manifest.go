// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import "context"

// resolveManifest resolves a commit to its root Manifest by batching a
// single-commit call through the root-tree-id reader, then handing the
// resulting tree id to the tree store. Every manifest the tracer looks at
// is obtained this way, from a single CommitId resolving to a single tree
// id.
func resolveManifest(ctx context.Context, commit CommitId, roots ReadRootTreeIds, trees TreeStore) (Manifest, error) {
	resolved, err := roots.ReadRootTreeIds(ctx, []CommitId{commit})
	if err != nil {
		return nil, wrapStoreError("root-tree-reader", commit, err)
	}
	if len(resolved) == 0 {
		return nil, &ErrRootTreeIdNotFound{Commit: commit}
	}
	m, err := trees.Manifest(ctx, resolved[0].Tree)
	if err != nil {
		return nil, wrapStoreError("tree-store", commit, err)
	}
	return m, nil
}
