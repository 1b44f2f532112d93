package main

import "github.com/pfrederiksen/wako-events/internal/cli"

func main() {
	cli.Execute()
}
