package main

import (
	_ "time/tzdata"

	"github.com/pfrederiksen/poitiers-events/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	cli.Execute()
}
