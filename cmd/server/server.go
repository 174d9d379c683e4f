package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kokukuma/hcert-verifier/internal/server"
)

func main() {
	srv := server.NewServer()

	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowCredentials(),
	))

	r.HandleFunc("/issue", srv.IssueCredential).Methods("POST", "OPTIONS")
	r.HandleFunc("/verify", srv.VerifyCredential).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/certificates", srv.ListCertificatesHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/transactions", srv.ListTransactionsHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/transactions/{id}", srv.GetTransactionHandler).Methods("GET", "OPTIONS")

	serverAddress := os.Getenv("SERVER_ADDRESS")
	if serverAddress == "" {
		serverAddress = ":8080"
	}
	log.Println("starting hcert verifier server at", serverAddress)
	log.Fatal(http.ListenAndServe(serverAddress, r))
}
