// Package store is an in-memory entity store for accounts, categories and
// transactions. It enforces referential integrity and import-hash
// uniqueness but contains no business logic; the analytics pipeline pulls
// materialized snapshots out of it.
package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jqrs/finance-app/pkg/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrCategoryNotFound = errors.New("category not found")
	// ErrDuplicate marks an import-hash collision: the transaction was
	// already imported, which is not a failure.
	ErrDuplicate = errors.New("transaction already imported")
)

// Account is a bank account transactions belong to.
type Account struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Institution    string  `json:"institution"`
	CurrentBalance float64 `json:"current_balance"`
}

// Category is an externally assigned spending category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is a persisted canonical transaction plus its identity and
// deduplication key.
type Transaction struct {
	ID         string `json:"id"`
	ImportHash string `json:"import_hash"`
	models.Transaction
}

// Filter selects a subset of the stored transactions.
type Filter struct {
	AccountID       string
	CategorizedOnly bool
}

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*Account
	accountOrder []string
	categories   map[string]*Category
	catOrder     []string
	transactions []Transaction
	hashes       map[string]bool
}

func New() *Store {
	return &Store{
		accounts:   make(map[string]*Account),
		categories: make(map[string]*Category),
		hashes:     make(map[string]bool),
	}
}

func (s *Store) CreateAccount(name, accountType, institution string, balance float64) Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Account{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           accountType,
		Institution:    institution,
		CurrentBalance: balance,
	}
	s.accounts[a.ID] = a
	s.accountOrder = append(s.accountOrder, a.ID)
	return *a
}

func (s *Store) GetAccount(id string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (s *Store) ListAccounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accountOrder))
	for _, id := range s.accountOrder {
		out = append(out, *s.accounts[id])
	}
	return out
}

// AdjustBalance shifts an account's balance by delta (the net amount of an
// import batch).
func (s *Store) AdjustBalance(id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.CurrentBalance += delta
	return nil
}

func (s *Store) CreateCategory(name string) Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Category{ID: uuid.NewString(), Name: name}
	s.categories[c.ID] = c
	s.catOrder = append(s.catOrder, c.ID)
	return *c
}

func (s *Store) GetCategory(id string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return Category{}, false
	}
	return *c, true
}

// FindCategoryByName resolves a category by case-insensitive name, for
// imports that carry category labels in the source file.
func (s *Store) FindCategoryByName(name string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.catOrder {
		if strings.EqualFold(s.categories[id].Name, name) {
			return *s.categories[id], true
		}
	}
	return Category{}, false
}

func (s *Store) ListCategories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, 0, len(s.catOrder))
	for _, id := range s.catOrder {
		out = append(out, *s.categories[id])
	}
	return out
}

// AssignCategory sets the category of a stored transaction.
func (s *Store) AssignCategory(transactionID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return ErrCategoryNotFound
	}
	for i := range s.transactions {
		if s.transactions[i].ID == transactionID {
			s.transactions[i].CategoryID = categoryID
			return nil
		}
	}
	return errors.New("transaction not found")
}

// InsertTransaction persists a canonical transaction under an import hash.
// The hash is the sole deduplication key: a collision means the transaction
// was already imported and returns ErrDuplicate.
func (s *Store) InsertTransaction(t models.Transaction, importHash string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[t.AccountID]; !ok {
		return Transaction{}, ErrAccountNotFound
	}
	if t.CategoryID != "" {
		if _, ok := s.categories[t.CategoryID]; !ok {
			return Transaction{}, ErrCategoryNotFound
		}
	}
	if s.hashes[importHash] {
		return Transaction{}, ErrDuplicate
	}

	stored := Transaction{
		ID:          uuid.NewString(),
		ImportHash:  importHash,
		Transaction: t,
	}
	s.transactions = append(s.transactions, stored)
	s.hashes[importHash] = true
	return stored, nil
}

// HasFingerprint reports whether an import hash was already persisted.
func (s *Store) HasFingerprint(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hashes[hash]
}

// ListTransactions returns the stored transactions matching the filter, in
// insertion order.
func (s *Store) ListTransactions(f Filter) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.CategorizedOnly && t.CategoryID == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Snapshot extracts the canonical transactions matching the filter, the
// form the detectors and forecasters consume.
func (s *Store) Snapshot(f Filter) []models.Transaction {
	stored := s.ListTransactions(f)
	out := make([]models.Transaction, len(stored))
	for i, t := range stored {
		out[i] = t.Transaction
	}
	return out
}

// DateSpan returns the first and last transaction dates.
func (s *Store) DateSpan() (first, last time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.transactions {
		if first.IsZero() || t.Date.Before(first) {
			first = t.Date
		}
		if last.IsZero() || t.Date.After(last) {
			last = t.Date
		}
	}
	return first, last, len(s.transactions) > 0
}
