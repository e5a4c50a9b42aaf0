package main

import "github.com/prperemyshlev/ebay-connector/internal/cli"

func main() {
	cli.Execute()
}
