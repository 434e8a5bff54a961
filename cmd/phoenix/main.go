package main

import "github.com/kysee/phoenix/cmd/phoenix/cmd"

func main() {
	cmd.Execute()
}
