// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package zeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindZetaDirNotFound(t *testing.T) {
	tmp := t.TempDir()
	nested := filepath.Join(tmp, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	_, _, err := FindZetaDir(nested)
	require.True(t, IsErrNotZetaDir(err))
}

func TestFindZetaDirWalksUpToZetaDir(t *testing.T) {
	tmp := t.TempDir()
	zetaDir := filepath.Join(tmp, ".zeta")
	require.NoError(t, os.MkdirAll(filepath.Join(zetaDir, "metadata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zetaDir, "zeta.toml"), []byte{}, 0o644))
	nested := filepath.Join(tmp, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	worktree, found, err := FindZetaDir(nested)
	require.NoError(t, err)
	require.Equal(t, tmp, worktree)
	require.Equal(t, zetaDir, found)
}
