package main

import (
	"log"

	"github.com/joho/godotenv"
)

// @title           Fiscal Engine API
// @version         1.0
// @description     API de emissão de documentos fiscais (NFS-e e NF-e) para clínicas veterinárias

// @contact.name   Suporte
// @contact.email  suporte@clinvet.com.br

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Cabeçalho de autenticação JWT usando o esquema Bearer. Exemplo: "Bearer {token}"
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Aviso: Arquivo .env não encontrado: %v", err)
	}

	app, err := NewApp()
	if err != nil {
		log.Fatalf("Erro ao inicializar a aplicação: %v", err)
	}
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatalf("Erro ao iniciar o servidor: %v", err)
	}
}
