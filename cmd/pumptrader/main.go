package main

import "pumptrader/internal/cli"

func main() {
	cli.Execute()
}
