package main

import "github.com/oshokin/wp-release/cmd/wp-release/cmd"

func main() {
	cmd.Execute()
}
