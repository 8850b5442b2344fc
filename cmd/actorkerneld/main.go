// Command actorkerneld runs a standalone node: it loads a NodeConfig,
// starts the kernel, registers a tiny demo Echo actor under a fixed
// id, and blocks until interrupted.
//
// Grounded on cmd/mcrew/main.go's flag-driven bring-up and ctx.Done()
// wait, adapted from booting a rule-engine Service to booting an
// ActorSystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nodecrew/actorkernel/config"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/kernel"
	"github.com/nodecrew/actorkernel/util"
)

// echoActor is a minimal demo LocalActor: it echoes its first argument
// back to the caller, verbatim.
type echoActor struct {
	id identity.ActorId
}

func (e *echoActor) ActorID() identity.ActorId { return e.id }

func (e *echoActor) Invoke(_ context.Context, _ string, _ []string, args [][]byte) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

func main() {
	var (
		configFile = flag.String("c", "", "YAML NodeConfig file (overrides -host/-port/-d/-status)")
		listenHost = flag.String("host", "127.0.0.1", "listen host, when -c is not given")
		listenPort = flag.Int("port", 9000, "listen port, when -c is not given")
		dbFile     = flag.String("d", "", "bbolt diagnostics event log path (empty disables diagnostics)")
		statusAddr = flag.String("status", "", "HTTP address for the status page (empty disables it)")
	)
	flag.BoolVar(&util.Logging, "v", false, "log connection and dispatch events")
	flag.Parse()

	cfg, err := loadConfig(*configFile, *listenHost, *listenPort, *dbFile, *statusAddr)
	if err != nil {
		log.Fatalf("actorkerneld: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := kernel.NewActorSystem(ctx, cfg)
	if err != nil {
		log.Fatalf("actorkerneld: %s", err)
	}
	defer k.ShutdownGracefully()

	hint := identity.NewActorId("echo")
	echo := kernel.MakeLocalActor(k, &hint, "Echo", func(id identity.ActorId) *echoActor {
		return &echoActor{id: id}
	})

	log.Printf("actorkerneld: node %s listening, echo actor at %s", k.LocalNodeID(), echo.ActorID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("actorkerneld: shutting down")
}

func loadConfig(path, host string, port int, dbFile, statusAddr string) (*config.NodeConfig, error) {
	if path != "" {
		return config.LoadNodeConfig(path)
	}

	cfg := config.DefaultNodeConfig()
	cfg.Listen = &config.ServerAddress{Scheme: config.SchemeInsecure, Host: host, Port: port}
	if dbFile != "" {
		cfg.Diagnostics = &config.DiagnosticsConfig{Path: dbFile, HTTPAddr: statusAddr}
	} else if statusAddr != "" {
		return nil, fmt.Errorf("-status requires -d (the status page reads from the diagnostics store)")
	}
	return cfg, nil
}
