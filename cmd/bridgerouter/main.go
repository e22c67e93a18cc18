package main

import "bridge-router/internal/cli"

func main() {
	cli.Execute()
}
