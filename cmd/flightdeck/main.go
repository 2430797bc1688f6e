package main

import "market-flight/internal/cli"

func main() {
	cli.Execute()
}
