package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/clinvet/fiscal-engine/internal/infrastructure/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Aviso: Arquivo .env não encontrado: %v", err)
	}

	path := os.Getenv("MIGRATIONS_PATH")
	if path == "" {
		path = "migrations"
	}

	if err := database.RunMigrations(path); err != nil {
		log.Fatalf("Erro ao executar migrações: %v", err)
	}

	log.Println("Migrações executadas com sucesso!")
}
