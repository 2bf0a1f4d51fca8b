// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package zeta

import (
	"context"
	"strings"

	"github.com/antgroup/hugescm/modules/plumbing"
	"github.com/antgroup/hugescm/modules/zeta/backend"
	"github.com/antgroup/hugescm/modules/zeta/config"
	"github.com/antgroup/hugescm/modules/zeta/reflog"
	"github.com/antgroup/hugescm/modules/zeta/refs"
	"github.com/antgroup/hugescm/pkg/zeta/odb"
)

const (
	// ZetaDirName this is a special folder where all the zeta stuff is.
	ZetaDirName = ".zeta"
)

type StringArray []string

func valuesMapArray(values []string) map[string]StringArray {
	m := make(map[string]StringArray)
	for _, v := range values {
		i := strings.IndexByte(v, '=')
		if i == -1 {
			continue
		}
		k := strings.ToLower(v[:i])
		v := v[i+1:]
		if _, ok := m[k]; ok {
			m[k] = append(m[k], v)
			continue
		}
		m[k] = []string{v}
	}
	return m
}

func getStringFromValues(k string, values map[string]StringArray) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	sa, ok := values[strings.ToLower(k)]
	if !ok {
		return "", false
	}
	if len(sa) == 0 {
		return "", true
	}
	return sa[len(sa)-1], true
}

// Repository is the content-addressed store and reference set the tracer
// resolves revisions and reads trees/blobs against. Its surface here is
// limited to opening an existing worktree and answering read-only queries:
// the mutating clone/fetch/checkout machinery lives with the commands that
// actually need it.
type Repository struct {
	*config.Config
	refs.Backend
	odb     *odb.ODB
	rdb     *reflog.DB
	baseDir string // worktree
	zetaDir string
	values  map[string]StringArray
	quiet   bool
	verbose bool
}

func parseSharingRoot(cfg *config.Config, values map[string]StringArray) (string, bool) {
	if sharingRoot, ok := getStringFromValues("core.sharingRoot", values); ok && len(sharingRoot) > 0 {
		return sharingRoot, true
	}
	if len(cfg.Core.SharingRoot) > 0 {
		return cfg.Core.SharingRoot, true
	}
	return "", false
}

type OpenOptions struct {
	Worktree string
	Quiet    bool
	Verbose  bool
	Values   []string
}

// Open locates the enclosing .zeta directory from opts.Worktree (or the
// current directory), loads its config, and opens its object and reflog
// databases read-only-in-spirit: nothing here mutates refs or the
// worktree, so callers that only need to resolve revisions and walk
// history (the tracer's CLI) never touch the clone/checkout path.
func Open(ctx context.Context, opts *OpenOptions) (*Repository, error) {
	worktree, zetaDir, err := FindZetaDir(opts.Worktree)
	if err != nil {
		die_error("%v", err)
		return nil, err
	}
	cfg, err := config.Load(zetaDir)
	if err != nil {
		die_error("%v", err)
		return nil, err
	}
	odbOpts := make([]backend.Option, 0, 2)
	odbOpts = append(odbOpts, backend.WithCompressionALGO(cfg.Core.CompressionALGO), backend.WithEnableLRU(true))
	values := valuesMapArray(opts.Values)

	if sharingRoot, sharingSet := parseSharingRoot(cfg, values); sharingSet {
		odbOpts = append(odbOpts, backend.WithSharingRoot(sharingRoot))
	}
	odb, err := odb.NewODB(zetaDir, odbOpts...)
	if err != nil {
		die("open odb: %v", err)
		return nil, err
	}
	r := &Repository{
		Config:  cfg,
		zetaDir: zetaDir,
		baseDir: worktree,
		odb:     odb,
		Backend: refs.NewBackend(zetaDir),
		rdb:     reflog.NewDB(zetaDir),
		values:  values,
		quiet:   opts.Quiet,
		verbose: opts.Verbose,
	}
	return r, nil
}

func (r *Repository) BaseDir() string {
	return r.baseDir
}

func (r *Repository) ZetaDir() string {
	return r.zetaDir
}

func (r *Repository) Current() (*plumbing.Reference, error) {
	ref, err := r.HEAD()
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, plumbing.ErrReferenceNotFound
	}
	if ref.Type() == plumbing.HashReference {
		return ref, nil
	}
	return r.Reference(ref.Target())
}

func (r *Repository) ODB() *odb.ODB {
	return r.odb
}

func (r *Repository) RDB() refs.Backend {
	return r.Backend
}

func (r *Repository) ReferenceResolve(name plumbing.ReferenceName) (ref *plumbing.Reference, err error) {
	return refs.ReferenceResolve(r.Backend, name)
}

func (r *Repository) Close() error {
	if r.odb == nil {
		return nil
	}
	return r.odb.Close()
}
