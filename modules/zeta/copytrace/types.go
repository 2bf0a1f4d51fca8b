// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package copytrace implements a DAG-aware copy/rename tracer: given two
// commits and a path valid at the first, it follows rename and copy
// metadata along the commit history connecting them to find the
// corresponding path at the second commit.
package copytrace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antgroup/hugescm/modules/plumbing"
)

// CommitId is an opaque, fixed-width identifier of a commit vertex in the
// DAG. It is the same digest type the rest of zeta uses for every object,
// so commit ids produced elsewhere in the codebase convert for free.
type CommitId = plumbing.Hash

// NewCommitId validates and converts a byte slice into a CommitId.
func NewCommitId(b []byte) (CommitId, error) {
	var id CommitId
	if len(b) != len(id) {
		return id, &ErrInvalidCommitId{Len: len(b)}
	}
	copy(id[:], b)
	return id, nil
}

// RepoPath is a normalized repository-relative file path: non-empty,
// forward-slash separated, and free of "." / ".." components.
type RepoPath string

// NewRepoPath validates a path string and returns it as a RepoPath.
func NewRepoPath(s string) (RepoPath, error) {
	if len(s) == 0 {
		return "", fmt.Errorf("copytrace: empty path")
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return "", fmt.Errorf("copytrace: path %q must not start or end with '/'", s)
	}
	for part := range strings.SplitSeq(s, "/") {
		switch part {
		case "":
			return "", fmt.Errorf("copytrace: path %q has an empty component", s)
		case ".", "..":
			return "", fmt.Errorf("copytrace: path %q contains a '%s' component", s, part)
		}
	}
	return RepoPath(s), nil
}

// Less reports whether p sorts before other in ascending lexicographic
// byte order, the order the inversion tie-break in RenameMap relies on.
func (p RepoPath) Less(other RepoPath) bool {
	return p < other
}

// FileKey identifies a specific file blob at a specific path within a
// commit's tree.
type FileKey struct {
	Path        RepoPath
	ContentHash plumbing.Hash
}

func (k FileKey) String() string {
	return fmt.Sprintf("%s@%s", k.Path, k.ContentHash.Prefix())
}

// SearchDirection controls which way a linear walk advances, and in turn
// how a RenameMap built at a rename-bearing commit is oriented.
type SearchDirection int

const (
	// Backward advances toward ancestors. The RenameMap answers "what did
	// this path used to be?" (new path -> old path).
	Backward SearchDirection = iota
	// Forward advances toward descendants. The RenameMap answers "what did
	// this path become?" (old path -> new path).
	Forward
)

func (d SearchDirection) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// DiffKind classifies one entry produced by diffing two manifests.
type DiffKind int

const (
	// LeftOnly: the path exists in the left (older) manifest only.
	LeftOnly DiffKind = iota
	// RightOnly: the path exists in the right (newer) manifest only.
	RightOnly
	// Changed: the path exists in both, with different content.
	Changed
)

// DiffEntry is one row of a manifest diff.
type DiffEntry struct {
	Kind DiffKind
	Path RepoPath
	// Left is the content hash on the left (older) side; zero if Kind ==
	// RightOnly.
	Left plumbing.Hash
	// Right is the content hash on the right (newer) side; zero if Kind ==
	// LeftOnly.
	Right plumbing.Hash
}

// RenameMap maps paths across a single rename-bearing commit. In Backward
// orientation (newRenameMap) a destination path maps to the source path it
// was renamed or copied from; in Forward orientation (invert) a source path
// maps to a destination path. Keys are unique and
// the map never contains an identity entry (p -> p cannot occur because a
// rename, by definition, changes the path).
type RenameMap map[RepoPath]RepoPath

// renameCandidate is one RightOnly diff entry paired with the rename
// predecessor resolved for it, prior to assembly into a RenameMap.
type renameCandidate struct {
	newPath RepoPath
	oldPath RepoPath
}

// newRenameMap builds a RenameMap from raw (new, old) pairs discovered at a
// rename-bearing commit, in Backward orientation (new path -> old path).
// Duplicate new-path keys cannot occur here: each comes from a distinct
// RightOnly diff entry, one per destination path.
func newRenameMap(candidates []renameCandidate) RenameMap {
	m := make(RenameMap, len(candidates))
	for _, c := range candidates {
		if c.newPath == c.oldPath {
			continue
		}
		m[c.newPath] = c.oldPath
	}
	return m
}

// invert returns the Forward-oriented RenameMap (old path -> new path).
//
// When two destinations were renamed/copied from the same source, the
// inversion collides: two "new" keys want to map to the same "old" key.
// Determinism is preserved by resolving the collision in ascending order
// of the *new*-side path: candidates are sorted by new path, and for each
// resulting old-side key only the first (smallest new path) survivor is
// kept. This matches the source project's survivor rule exactly (sort the
// (new, old) pairs by new path, then collect into a map, first write
// wins) rather than relying on map iteration order, which Go (like Rust's
// HashMap) does not guarantee.
func (m RenameMap) invert() RenameMap {
	candidates := make([]renameCandidate, 0, len(m))
	for newPath, oldPath := range m {
		candidates = append(candidates, renameCandidate{newPath: newPath, oldPath: oldPath})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].newPath.Less(candidates[j].newPath)
	})

	inverted := make(RenameMap, len(candidates))
	for _, c := range candidates {
		if _, exists := inverted[c.oldPath]; exists {
			continue
		}
		inverted[c.oldPath] = c.newPath
	}
	return inverted
}
