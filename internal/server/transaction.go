package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Transaction is one issue or verify call handled by the server.
type Transaction struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Issuer  string    `json:"issuer,omitempty"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

type Transactions struct {
	mu      sync.RWMutex
	entries map[string]*Transaction
	order   []string
}

func NewTransactions() *Transactions {
	return &Transactions{
		entries: make(map[string]*Transaction),
	}
}

func (t *Transactions) Record(kind, issuer, outcome string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &Transaction{
		ID:      uuid.New().String(),
		Kind:    kind,
		Issuer:  issuer,
		Outcome: outcome,
		At:      time.Now(),
	}
	t.entries[entry.ID] = entry
	t.order = append(t.order, entry.ID)
	return entry.ID
}

func (t *Transactions) Get(id string) (*Transaction, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[id]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return entry, nil
}

func (t *Transactions) List() []*Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]*Transaction, 0, len(t.order))
	for _, id := range t.order {
		list = append(list, t.entries[id])
	}
	return list
}

// ListTransactionsHandler returns every recorded transaction.
func (s *Server) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.transactions.List(), http.StatusOK)
}

// GetTransactionHandler returns a single transaction by id.
func (s *Server) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entry, err := s.transactions.Get(vars["id"])
	if err != nil {
		jsonErrorResponse(w, err, http.StatusNotFound)
		return
	}
	jsonResponse(w, entry, http.StatusOK)
}
