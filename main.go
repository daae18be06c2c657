package main

import (
	"github.com/0xPolygon/txtrace/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
