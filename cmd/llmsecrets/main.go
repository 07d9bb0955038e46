package main

import "llmsecrets/internal/cli"

func main() {
	cli.Execute()
}
