// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/antgroup/hugescm/modules/env"
	"github.com/antgroup/hugescm/pkg/command"
	"github.com/antgroup/hugescm/pkg/kong"
	"github.com/antgroup/hugescm/pkg/tr"
	"github.com/antgroup/hugescm/pkg/version"
)

type App struct {
	command.Globals
	CopyTrace command.CopyTrace `cmd:"copy-trace" help:"Trace a path's rename/copy history between two commits"`
	Version   command.Version   `cmd:"version" help:"Display version information"`
	Debug     bool              `name:"debug" help:"Enable debug mode; analyze timing"`
}

type Tracer struct {
	closeFn func()
}

func NewTracer(debugMode bool) *Tracer {
	d := &Tracer{}
	if !debugMode {
		return d
	}
	pprofName := filepath.Join(os.TempDir(), fmt.Sprintf("zeta-%d.pprof", os.Getpid()))
	fd, err := os.Create(pprofName)
	if err != nil {
		return d
	}
	if err = pprof.StartCPUProfile(fd); err != nil {
		_ = fd.Close()
		return d
	}
	d.closeFn = func() {
		pprof.StopCPUProfile()
		_ = fd.Close()
		fmt.Fprintf(os.Stderr, "Task operation completed\ngo tool pprof -http=\":8080\" %s\n", pprofName)
	}
	return d
}

func (d *Tracer) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}

func main() {
	_ = env.InitializeEnv()
	// initialize locale
	_ = tr.Initialize()
	kong.BindW(tr.W) // replace W
	var app App
	ctx := kong.Parse(&app,
		kong.Name("zeta"),
		kong.Description(tr.W("HugeSCM - A next generation cloud-based version control system")),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	now := time.Now()
	t := NewTracer(app.Debug)
	err := ctx.Run(&app.Globals)
	t.Close()
	if app.Verbose {
		app.DbgPrint("time spent: %v", time.Since(now))
	}
	if err == nil {
		return
	}
	os.Exit(1)
}
