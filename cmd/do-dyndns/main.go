package main

import (
	"github.com/clieb/do-dyndns/pkg/cmd"
)

func main() {
	cmd.Execute()
}
