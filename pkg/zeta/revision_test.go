// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package zeta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAncestor(t *testing.T) {
	cases := []struct {
		rev      string
		wantBase string
		wantN    int
	}{
		{"master^^^", "master", 3},
		{"master~12", "master", 12},
		{"master", "master", 0},
	}
	for _, c := range cases {
		base, n, err := resolveAncestor(c.rev)
		require.NoError(t, err)
		require.Equal(t, c.wantBase, base)
		require.Equal(t, c.wantN, n)
	}
}

func TestResolveAncestorRejectsMixedCaret(t *testing.T) {
	_, _, err := resolveAncestor("master^x")
	require.Error(t, err)
}

func TestNewOID(t *testing.T) {
	require.True(t, newOID("not-a-hash").IsZero())
	hex := strings.Repeat("ab", 32)
	require.False(t, newOID(hex).IsZero())
}
