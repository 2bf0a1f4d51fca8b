// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cid(b byte) CommitId {
	var id CommitId
	id[0] = b
	return id
}

func contentHash(b byte) (h CommitId) {
	h[0] = b
	return h
}

func mustPath(t *testing.T, s string) RepoPath {
	t.Helper()
	p, err := NewRepoPath(s)
	require.NoError(t, err)
	return p
}

// fakeDag is an in-memory commit graph keyed by parent edges.
type fakeDag struct {
	parents map[CommitId][]CommitId
}

func newFakeDag() *fakeDag {
	return &fakeDag{parents: make(map[CommitId][]CommitId)}
}

func (f *fakeDag) addCommit(c CommitId, parents ...CommitId) {
	f.parents[c] = parents
}

func (f *fakeDag) ancestorsOf(c CommitId) map[CommitId]bool {
	seen := map[CommitId]bool{c: true}
	stack := []CommitId{c}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range f.parents[cur] {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return seen
}

func (f *fakeDag) IsAncestor(ctx context.Context, a, b CommitId) (bool, error) {
	return f.ancestorsOf(b)[a], nil
}

func (f *fakeDag) ParentNames(ctx context.Context, c CommitId) ([]CommitId, error) {
	return f.parents[c], nil
}

func (f *fakeDag) Range(ctx context.Context, from, to CommitId) (CommitRange, error) {
	var ids []CommitId
	seen := map[CommitId]bool{}
	stack := []CommitId{to}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		ids = append(ids, cur)
		if cur == from {
			continue
		}
		stack = append(stack, f.parents[cur]...)
	}
	return &fakeCommitRange{ids: ids}, nil
}

func (f *fakeDag) GCAOne(ctx context.Context, ids []CommitId) (CommitId, bool, error) {
	if len(ids) == 0 {
		return CommitId{}, false, nil
	}
	base := f.ancestorsOf(ids[0])
	for _, other := range ids[1:] {
		for c := range f.ancestorsOf(other) {
			if base[c] {
				return c, true, nil
			}
		}
	}
	return CommitId{}, false, nil
}

type fakeCommitRange struct {
	ids []CommitId
}

func (r *fakeCommitRange) Commits(ctx context.Context) (CommitIter, error) {
	return NewSliceCommitIter(r.ids), nil
}

// fakeStore backs ReadRootTreeIds, TreeStore and ReadFileContents with a
// per-commit manifest and a global rename-header table, keyed by
// CommitId used directly as its own "tree id" (1:1 since fixtures never
// share a tree across commits).
type fakeStore struct {
	manifests map[CommitId]map[RepoPath]CommitId // commit -> path -> content hash
	renames   map[FileKey]RepoPath               // new FileKey -> old path
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		manifests: make(map[CommitId]map[RepoPath]CommitId),
		renames:   make(map[FileKey]RepoPath),
	}
}

func (s *fakeStore) setFiles(commit CommitId, files map[RepoPath]CommitId) {
	s.manifests[commit] = files
}

func (s *fakeStore) setRename(newPath RepoPath, newHash CommitId, oldPath RepoPath) {
	s.renames[FileKey{Path: newPath, ContentHash: newHash}] = oldPath
}

func (s *fakeStore) ReadRootTreeIds(ctx context.Context, commits []CommitId) ([]CommitTreeId, error) {
	out := make([]CommitTreeId, 0, len(commits))
	for _, c := range commits {
		if _, ok := s.manifests[c]; !ok {
			continue
		}
		out = append(out, CommitTreeId{Commit: c, Tree: c})
	}
	return out, nil
}

func (s *fakeStore) Manifest(ctx context.Context, tree CommitId) (Manifest, error) {
	files, ok := s.manifests[tree]
	if !ok {
		files = map[RepoPath]CommitId{}
	}
	return &fakeManifest{files: files}, nil
}

func (s *fakeStore) ReadRenameMetadata(ctx context.Context, keys []FileKey) (RenameLookupIter, error) {
	results := make([]RenameLookup, 0, len(keys))
	for _, k := range keys {
		if old, ok := s.renames[k]; ok {
			results = append(results, RenameLookup{Key: k, Predecessor: &FileKey{Path: old}})
		}
	}
	return &fakeLookupIter{results: results}, nil
}

type fakeManifest struct {
	files map[RepoPath]CommitId
}

func (m *fakeManifest) Lookup(ctx context.Context, path RepoPath) (FileKey, bool, error) {
	h, ok := m.files[path]
	if !ok {
		return FileKey{}, false, nil
	}
	return FileKey{Path: path, ContentHash: h}, true, nil
}

func (m *fakeManifest) Diff(ctx context.Context, other Manifest) (DiffIter, error) {
	o := other.(*fakeManifest)
	var entries []*DiffEntry
	for p, lh := range m.files {
		if rh, ok := o.files[p]; ok {
			if rh != lh {
				entries = append(entries, &DiffEntry{Kind: Changed, Path: p, Left: lh, Right: rh})
			}
			continue
		}
		entries = append(entries, &DiffEntry{Kind: LeftOnly, Path: p, Left: lh})
	}
	for p, rh := range o.files {
		if _, ok := m.files[p]; !ok {
			entries = append(entries, &DiffEntry{Kind: RightOnly, Path: p, Right: rh})
		}
	}
	return &fakeDiffIter{entries: entries}, nil
}

type fakeDiffIter struct {
	entries []*DiffEntry
	pos     int
}

func (it *fakeDiffIter) Next(ctx context.Context) (*DiffEntry, error) {
	if it.pos >= len(it.entries) {
		return nil, io.EOF
	}
	e := it.entries[it.pos]
	it.pos++
	return e, nil
}

type fakeLookupIter struct {
	results []RenameLookup
	pos     int
}

func (it *fakeLookupIter) Next(ctx context.Context) (*RenameLookup, error) {
	if it.pos >= len(it.results) {
		return nil, io.EOF
	}
	r := it.results[it.pos]
	it.pos++
	return &r, nil
}

func newTracerFixture() (*fakeDag, *fakeStore, *Tracer) {
	dag := newFakeDag()
	store := newFakeStore()
	tracer := NewTracer(store, store, dag, store)
	return dag, store, tracer
}

// Scenario A: linear rename chain, backward and forward.
// A -> B -> C, B renames foo.txt to bar.txt, C renames bar.txt to baz.txt.
func TestTraceRenameLinearChain(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	a, b, c := cid(1), cid(2), cid(3)
	dag.addCommit(a)
	dag.addCommit(b, a)
	dag.addCommit(c, b)

	foo, bar, baz := mustPath(t, "foo.txt"), mustPath(t, "bar.txt"), mustPath(t, "baz.txt")
	store.setFiles(a, map[RepoPath]CommitId{foo: contentHash(10)})
	store.setFiles(b, map[RepoPath]CommitId{bar: contentHash(10)})
	store.setFiles(c, map[RepoPath]CommitId{baz: contentHash(10)})
	store.setRename(bar, contentHash(10), foo)
	store.setRename(baz, contentHash(10), bar)

	got, ok, err := tracer.TraceRename(context.Background(), a, c, foo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, baz, got)

	got, ok, err = tracer.TraceRename(context.Background(), c, a, baz)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, foo, got)
}

// Scenario B: content change only, no rename header. The path survives
// unrenamed.
func TestTraceRenameContentChangeOnly(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	a, b := cid(1), cid(2)
	dag.addCommit(a)
	dag.addCommit(b, a)

	foo := mustPath(t, "foo.txt")
	store.setFiles(a, map[RepoPath]CommitId{foo: contentHash(1)})
	store.setFiles(b, map[RepoPath]CommitId{foo: contentHash(2)})

	got, ok, err := tracer.TraceRename(context.Background(), a, b, foo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, foo, got)
}

// Scenario: the path is deleted with no rename header; history is
// severed and no corresponding path exists.
func TestTraceRenameDeletedSeversHistory(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	a, b := cid(1), cid(2)
	dag.addCommit(a)
	dag.addCommit(b, a)

	foo := mustPath(t, "foo.txt")
	store.setFiles(a, map[RepoPath]CommitId{foo: contentHash(1)})
	store.setFiles(b, map[RepoPath]CommitId{})

	_, ok, err := tracer.TraceRename(context.Background(), a, b, foo)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Scenario D: split via GCA. base has children left and right; left
// renames a to b, right renames a to c.
func TestTraceRenameSplitViaGCA(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	base, left, right := cid(1), cid(2), cid(3)
	dag.addCommit(base)
	dag.addCommit(left, base)
	dag.addCommit(right, base)

	pa, pb, pc := mustPath(t, "a"), mustPath(t, "b"), mustPath(t, "c")
	store.setFiles(base, map[RepoPath]CommitId{pa: contentHash(5)})
	store.setFiles(left, map[RepoPath]CommitId{pb: contentHash(5)})
	store.setFiles(right, map[RepoPath]CommitId{pc: contentHash(5)})
	store.setRename(pb, contentHash(5), pa)
	store.setRename(pc, contentHash(5), pa)

	got, ok, err := tracer.TraceRename(context.Background(), left, right, pb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pc, got)
}

// Scenario: unrelated histories (no GCA) yield no correspondence.
func TestTraceRenameUnrelatedHistories(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	a, b := cid(1), cid(2)
	dag.addCommit(a)
	dag.addCommit(b)

	foo := mustPath(t, "foo.txt")
	store.setFiles(a, map[RepoPath]CommitId{foo: contentHash(1)})
	store.setFiles(b, map[RepoPath]CommitId{})

	_, ok, err := tracer.TraceRename(context.Background(), a, b, foo)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Scenario F: inversion collision. Commit B adds both x and y with
// rename predecessor a. Forward direction inverted map keeps the
// smallest new path, x, since x < y lexicographically.
func TestTraceRenameInversionCollision(t *testing.T) {
	dag, store, tracer := newTracerFixture()
	a, b := cid(1), cid(2)
	dag.addCommit(a)
	dag.addCommit(b, a)

	pa, px, py := mustPath(t, "a"), mustPath(t, "x"), mustPath(t, "y")
	store.setFiles(a, map[RepoPath]CommitId{pa: contentHash(7)})
	store.setFiles(b, map[RepoPath]CommitId{px: contentHash(7), py: contentHash(7)})
	store.setRename(px, contentHash(7), pa)
	store.setRename(py, contentHash(7), pa)

	got, ok, err := tracer.TraceRename(context.Background(), a, b, pa)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, px, got)
}

func TestFindRenamesAtNoParentsFails(t *testing.T) {
	dag, store, _ := newTracerFixture()
	root := cid(1)
	dag.addCommit(root)
	store.setFiles(root, map[RepoPath]CommitId{})

	d := &differ{roots: store, trees: store, dag: dag, files: store}
	_, _, err := d.findRenamesAt(context.Background(), root, Backward)
	require.Error(t, err)
	assert.True(t, IsErrNoParents(err))
}

func TestRenameMapInvertDeterministicSurvivor(t *testing.T) {
	px, py, pa := mustPath(t, "x"), mustPath(t, "y"), mustPath(t, "a")
	m := newRenameMap([]renameCandidate{
		{newPath: py, oldPath: pa},
		{newPath: px, oldPath: pa},
	})
	inverted := m.invert()
	require.Len(t, inverted, 1)
	assert.Equal(t, px, inverted[pa])
}

func TestNewRenameMapSkipsIdentity(t *testing.T) {
	p := mustPath(t, "same.txt")
	m := newRenameMap([]renameCandidate{{newPath: p, oldPath: p}})
	assert.Empty(t, m)
}

func TestNewRepoPathRejectsMalformed(t *testing.T) {
	cases := []string{"", "/abs", "trailing/", "a/../b", "a/./b", "a//b"}
	for _, c := range cases {
		_, err := NewRepoPath(c)
		assert.Errorf(t, err, "expected error for %q", c)
	}
}

func TestNewRepoPathAccepts(t *testing.T) {
	p, err := NewRepoPath("dir/sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, RepoPath("dir/sub/file.txt"), p)
}

func TestMetadataReaderEmptyKeysShortCircuits(t *testing.T) {
	_, store, _ := newTracerFixture()
	reader := &metadataReader{files: store}
	resolved, err := reader.read(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}
