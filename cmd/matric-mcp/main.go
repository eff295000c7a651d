package main

import "github.com/fortemi/matric-mcp/cmd/matric-mcp/cmd"

func main() {
	cmd.Execute()
}
