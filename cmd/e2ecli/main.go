// The entrypoint for the e2ecli demonstration CLI.
package main

import (
	"log"

	"e2ecore/cmd/e2ecli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
