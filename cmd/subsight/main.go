package main

import "github.com/smallbiznis/subsight/internal/cli"

func main() {
	cli.Execute()
}
