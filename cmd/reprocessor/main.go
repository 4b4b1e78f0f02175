package main

import "github.com/aevon-lab/reprocessor/internal/cli"

func main() {
	cli.Execute()
}
