package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// Service provides in-memory lookup over the local accounts.
type Service struct {
	accounts []model.Account
	byID     map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}
}

func path(repoRoot string) string {
	return filepath.Join(repoRoot, "accounts", "accounts.csv")
}

// Load reads accounts/accounts.csv from a repo root. A missing file yields
// an empty Service.
func Load(repoRoot string) (*Service, error) {
	f, err := os.Open(path(repoRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return NewService(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Add registers a new account with a generated ID.
func (s *Service) Add(name string, accountType model.AccountType, mask string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, fmt.Errorf("account name is required")
	}
	if !model.ValidAccountType(accountType) {
		return model.Account{}, fmt.Errorf("invalid account type %q", accountType)
	}
	mask = strings.TrimSpace(mask)
	if strings.IndexFunc(mask, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return model.Account{}, fmt.Errorf("mask must be digits, got %q", mask)
	}

	acct := model.Account{ID: uuid.NewString(), Name: name, Type: accountType, Mask: mask}
	s.accounts = append(s.accounts, acct)
	s.byID[acct.ID] = acct
	return acct, nil
}

// MatchHint returns the account whose mask ends the statement's account
// number hint. Ambiguous hints (several accounts match) return false.
func (s *Service) MatchHint(hint string) (model.Account, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return model.Account{}, false
	}

	var found model.Account
	n := 0
	for _, a := range s.accounts {
		if a.Mask != "" && strings.HasSuffix(hint, a.Mask) {
			found = a
			n++
		}
	}
	return found, n == 1
}

// Save writes the accounts to accounts/accounts.csv.
func (s *Service) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, "accounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path(repoRoot))
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
