// Command emulator runs a local identity platform for the admin SDK to
// talk to. Point FIREBASE_AUTH_EMULATOR_HOST at it.
package main

//go:generate swag init -g ../../internal/emulator/http/router.go -o ../../api/emulator --packageName emulator --outputTypes go

import (
	"log"

	"github.com/aussiebroadwan/firekit/internal/emulator/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
