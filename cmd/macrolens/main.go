package main

import (
	"os"

	"github.com/wonny/macrolens/backend/cmd/macrolens/commands"
)

// main is the entry point for the MacroLens CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/macrolens [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
