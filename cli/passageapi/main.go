package main

import (
	"os"

	servecmder "github.com/passagehq/passage/cmd/passage/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "passageapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .passage directory location")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
