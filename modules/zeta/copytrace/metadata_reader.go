// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package copytrace

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// metadataReader batches the per-file rename-header lookups backing one
// Manifest Differ step against the file store, and assembles a
// destination -> source RepoPath map containing only the keys whose
// header names a predecessor.
type metadataReader struct {
	files ReadFileContents
}

// read drains the file store's lazy rename-metadata stream for keys,
// retaining the (destination, source) path pair when a predecessor is
// present and discarding the key otherwise. An empty keys slice yields an
// empty map without contacting the store.
//
// The store enumerates the batch as a single lazy stream; the reader
// amortizes one trace step's I/O by draining it to completion before the
// walker proceeds, it does not fan further out across commits.
func (r *metadataReader) read(ctx context.Context, keys []FileKey) (map[RepoPath]RepoPath, error) {
	if len(keys) == 0 {
		return map[RepoPath]RepoPath{}, nil
	}

	stream, err := r.files.ReadRenameMetadata(ctx, keys)
	if err != nil {
		return nil, err
	}

	result := make(map[RepoPath]RepoPath, len(keys))
	for {
		lookup, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if lookup.Predecessor != nil {
			result[lookup.Key.Path] = lookup.Predecessor.Path
		}
	}
	return result, nil
}

// concurrentReadFileContents wraps a ReadFileContents whose per-key
// header lookup is itself blocking (e.g. backed by per-blob store reads)
// so that a batch is resolved with bounded fan-out instead of
// sequentially, one errgroup per call to ReadRenameMetadata. This is the
// one place the tracer fans out concurrently, and only within a single
// trace step's candidate batch, never across commits.
type concurrentReadFileContents struct {
	lookup func(ctx context.Context, key FileKey) (*FileKey, error)
}

// NewConcurrentReadFileContents adapts a single-key rename-header lookup
// function into a batching ReadFileContents, resolving up to len(keys)
// lookups concurrently via errgroup and returning them as a fully
// materialized RenameLookupIter (order is not significant to callers,
// which only ever build a map from the result).
func NewConcurrentReadFileContents(lookup func(ctx context.Context, key FileKey) (*FileKey, error)) ReadFileContents {
	return &concurrentReadFileContents{lookup: lookup}
}

func (c *concurrentReadFileContents) ReadRenameMetadata(ctx context.Context, keys []FileKey) (RenameLookupIter, error) {
	results := make([]RenameLookup, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			predecessor, err := c.lookup(gctx, key)
			if err != nil {
				return err
			}
			results[i] = RenameLookup{Key: key, Predecessor: predecessor}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &sliceRenameLookupIter{results: results}, nil
}

type sliceRenameLookupIter struct {
	results []RenameLookup
	pos     int
}

func (it *sliceRenameLookupIter) Next(ctx context.Context) (*RenameLookup, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if it.pos >= len(it.results) {
		return nil, io.EOF
	}
	r := it.results[it.pos]
	it.pos++
	return &r, nil
}
