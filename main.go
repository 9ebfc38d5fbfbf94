package main

import (
	"log"

	"contract-editor/app"
)

func main() {
	server, err := app.NewServer()
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer server.Close()
	log.Fatal(server.Start(""))
}
