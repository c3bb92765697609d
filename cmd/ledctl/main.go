package main

import (
	"log"

	"github.com/MrSnakeDoc/ledctl/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ ledctl failed to initialize: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ ledctl failed to start: %v", err)
	}
}
