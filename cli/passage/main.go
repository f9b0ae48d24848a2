package main

import (
	"os"

	passagecmder "github.com/passagehq/passage/cmd/passage"
)

func main() {
	cmd := passagecmder.NewPassageCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
