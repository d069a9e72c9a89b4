package main

import (
	"github.com/blockclique/blockclique-go/cmd"
)

func main() {
	cmd.Execute()
}
