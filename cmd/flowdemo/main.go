// Command flowdemo wires a couple of toy services into a graph and runs
// it through the supervisor end to end, the way the original engine's
// examples did (toy-core/examples) — this replaces the teacher's
// cobra-based CLI entry point, which talked to an out-of-scope daemon
// control plane.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dagflow/flowcore/internal/demoservices"
	"github.com/dagflow/flowcore/internal/engineconfig"
	"github.com/dagflow/flowcore/internal/obslog"
	"github.com/dagflow/flowcore/internal/supervisor"
	"github.com/dagflow/flowcore/pkg/flow/registry"
)

func main() {
	cfg := engineconfig.Defaults()
	logger := obslog.New(cfg.Log)

	app := registry.NewApp(registry.NewRegistry())
	if err := demoservices.RegisterAll(app); err != nil {
		logger.Fatalf("register demo services: %v", err)
	}

	sup := supervisor.New(app, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	g := demoservices.CountGraph("demo", 5)

	taskID, err := sup.RunTask(ctx, g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run task: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("started task %s", taskID)

	time.Sleep(200 * time.Millisecond)

	if err := sup.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		os.Exit(1)
	}
}
