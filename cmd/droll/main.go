package main

import (
	"github.com/rfglabs/deathroll/internal/cli"
)

func main() {
	cli.Execute()
}
