// Command actorkernelcli dials a single remote node and issues one
// RemoteCall, printing the reply bytes as a string.
//
// Grounded on cmd/mcrew/client-ws.go's single-peer WebSocket client
// bring-up, adapted from forwarding rule-engine ops to issuing one
// RemoteCall and exiting.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/nodecrew/actorkernel/config"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/kernel"
	"github.com/nodecrew/actorkernel/util"
)

func main() {
	var (
		host    = flag.String("host", "127.0.0.1", "remote node host")
		port    = flag.Int("port", 9000, "remote node port")
		node    = flag.String("node", "", "remote NodeId (required)")
		actorID = flag.String("actor", "echo", "target ActorId")
		target  = flag.String("target", "", "invocationTarget")
		arg     = flag.String("arg", "", "single argument, sent as raw bytes")
		timeout = flag.Duration("timeout", 5*time.Second, "call timeout")
	)
	flag.BoolVar(&util.Logging, "v", false, "log connection events")
	flag.Parse()

	if *node == "" {
		log.Fatalf("actorkernelcli: -node is required")
	}
	nodeID, err := identity.NodeIdFromString(*node)
	if err != nil {
		log.Fatalf("actorkernelcli: parsing -node: %s", err)
	}

	cfg := config.DefaultNodeConfig()
	cfg.Dial = []config.ServerAddress{
		{Scheme: config.SchemeInsecure, Host: *host, Port: *port},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := kernel.NewActorSystem(ctx, cfg)
	if err != nil {
		log.Fatalf("actorkernelcli: %s", err)
	}
	defer k.ShutdownGracefully()

	recipient := identity.NewActorId(*actorID).With(nodeID)

	callCtx, callCancel := context.WithTimeout(ctx, *timeout)
	defer callCancel()

	var args [][]byte
	if *arg != "" {
		args = [][]byte{[]byte(*arg)}
	}

	result, err := k.RemoteCall(callCtx, recipient, *target, nil, args)
	if err != nil {
		log.Fatalf("actorkernelcli: call failed: %s", err)
	}
	log.Printf("actorkernelcli: reply: %s", result)
}
