// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/antgroup/hugescm/pkg/zeta"
)

// usage: zeta copy-trace <src> <dst> <path>

const (
	copyTraceSummaryFormat = `%szeta copy-trace <src> <dst> <path>`
)

type CopyTrace struct {
	Args []string `arg:"" name:"revision-or-path" help:"<src> <dst> <path>"`
}

func (c *CopyTrace) Summary() string {
	return fmt.Sprintf(copyTraceSummaryFormat, W("Usage: "))
}

func (c *CopyTrace) Run(g *Globals) error {
	if len(c.Args) != 3 {
		diev("copy-trace requires exactly three arguments: <src> <dst> <path>")
		return ErrArgRequired
	}
	r, err := zeta.Open(context.Background(), &zeta.OpenOptions{
		Worktree: g.CWD,
		Values:   g.Values,
		Verbose:  g.Verbose,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	resolved, ok, err := r.TraceRename(context.Background(), c.Args[0], c.Args[1], c.Args[2])
	if err != nil {
		diev("copy-trace: %v", err)
		return err
	}
	if !ok {
		diev("copy-trace: no corresponding path for '%s' between '%s' and '%s'", c.Args[2], c.Args[0], c.Args[1])
		return zeta.ErrAborting
	}
	fmt.Println(resolved)
	return nil
}
