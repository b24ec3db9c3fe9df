// Package main is the salesctl operator CLI.
package main

import "salescycle/cmd/salesctl/cmd"

func main() {
	cmd.Execute()
}
