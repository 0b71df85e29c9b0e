package main

import "sanskrit-reader/api/internal/cli"

func main() {
	cli.Execute()
}
