package main

import (
	"github.com/rileyhilliard/scatter/internal/cli"
)

// Version info set via ldflags at build time:
//
//	go build -ldflags "-X main.version=0.3.0 -X main.commit=$(git rev-parse --short HEAD)" ./cmd/scatter
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Execute()
}
