// Package main provides the glsync CLI, which mirrors registry project roles
// into GitLab groups, projects and memberships.
package main

import "github.com/mscno/glsync/cmd/glsync/commands"

func main() {
	commands.Execute(Version)
}
