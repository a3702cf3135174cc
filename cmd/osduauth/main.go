// Package main provides the osduauth CLI for acquiring OSDU platform tokens.
package main

import "github.com/subsealabs/osduauth/cmd/osduauth/commands"

func main() {
	commands.Execute(Version)
}
