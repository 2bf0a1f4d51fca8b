// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package zeta

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/antgroup/hugescm/modules/plumbing"
)

func resolveAncestor(revision string) (string, int, error) {
	if pos := strings.IndexByte(revision, '~'); pos != -1 {
		ns := revision[pos+1:]
		if len(ns) == 0 {
			return revision[0:pos], 1, nil
		}
		num, err := strconv.Atoi(ns)
		if err != nil {
			return "", 0, fmt.Errorf("not a valid object name %s", revision)
		}
		return revision[0:pos], num, nil
	}
	if pos := strings.IndexByte(revision, '^'); pos != -1 {
		for _, c := range revision[pos:] {
			if c != '^' {
				return "", 0, fmt.Errorf("not a valid object name %s", revision)
			}
		}
		return revision[0:pos], len(revision) - pos, nil
	}
	return revision, 0, nil
}

func newOID(s string) plumbing.Hash {
	if plumbing.ValidateHashHex(s) {
		return plumbing.NewHash(s)
	}
	return plumbing.ZeroHash
}

func (r *Repository) PickAncestor(ctx context.Context, oid plumbing.Hash, n int) (plumbing.Hash, error) {
	cur := oid
	for i := 0; i < n; i++ {
		cc, err := r.odb.ParseRevExhaustive(ctx, cur)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if len(cc.Parents) == 0 {
			return plumbing.ZeroHash, nil
		}
		cur = cc.Parents[0]
	}
	return cur, nil
}

type ErrUnknownRevision struct {
	revision string
}

func (e *ErrUnknownRevision) Error() string {
	return fmt.Sprintf(W("ambiguous argument '%s': unknown revision or path not in the working tree."), e.revision)
}

func IsErrUnknownRevision(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrUnknownRevision)
	return ok
}

func (r *Repository) resolveRevision(ctx context.Context, revision string) (plumbing.Hash, error) {
	select {
	case <-ctx.Done():
		return plumbing.ZeroHash, ctx.Err()
	default:
	}
	if revision == string(plumbing.HEAD) {
		current, err := r.Current()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return current.Hash(), nil
	}
	if oid := newOID(revision); !oid.IsZero() {
		return oid, nil
	}
	if strings.HasPrefix(revision, plumbing.ReferencePrefix) {
		if ref, err := r.Reference(plumbing.ReferenceName(revision)); err == nil {
			return ref.Hash(), nil
		}
	}
	branch, err := r.Reference(plumbing.NewBranchReferenceName(revision))
	if err == nil {
		return branch.Hash(), nil
	}
	tag, err := r.Reference(plumbing.NewTagReferenceName(revision))
	if err == nil {
		return tag.Hash(), nil
	}
	if branchRemote, ok := strings.CutPrefix(revision, plumbing.Origin); ok {
		ref, err := r.Reference(plumbing.NewRemoteReferenceName(plumbing.Origin, branchRemote))
		if err == nil {
			return ref.Hash(), nil
		}
	}

	if len(revision) < 6 {
		return plumbing.ZeroHash, &ErrUnknownRevision{revision: revision}
	}
	rev, err := r.odb.Search(revision)
	if plumbing.IsNoSuchObject(err) {
		return plumbing.ZeroHash, &ErrUnknownRevision{revision: revision}
	}
	return rev, err
}

// Revision resolve revision
//
//	https://git-scm.com/book/en/v2/Git-Tools-Revision-Selection
//	We are not strictly compatible with Git, do not support combination mode, and do not support finding the second parent
//
// eg: HEAD HEAD^^^^ HEAD~2 BRANCH or TAG Long-OID Short-OID
func (r *Repository) Revision(ctx context.Context, branchOrTag string) (plumbing.Hash, error) {
	revision, ancestor, err := resolveAncestor(branchOrTag)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	oid, err := r.resolveRevision(ctx, revision)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if ancestor == 0 {
		return oid, nil
	}
	return r.PickAncestor(ctx, oid, ancestor)
}
