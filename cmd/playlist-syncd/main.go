// Package main is the entry point for the playlist sync server.
package main

import (
	"os"

	"github.com/chapterline/playlist-sync-server/cmd/playlist-syncd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
