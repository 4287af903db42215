package main

import "github.com/josephlewis42/pipesh/cmd"

func main() {
	cmd.Execute()
}
