// Package workspace opens a personal-finance workspace directory and wires
// its config, accounts, ledger and import service together.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/chrisrogers37/really-personal-finance/internal/accounts"
	"github.com/chrisrogers37/really-personal-finance/internal/config"
	"github.com/chrisrogers37/really-personal-finance/internal/gitops"
	"github.com/chrisrogers37/really-personal-finance/internal/importlog"
	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	"github.com/chrisrogers37/really-personal-finance/internal/ledger"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

var (
	_ imports.Ledger           = (*ledger.Store)(nil)
	_ imports.AccountDirectory = (*accounts.Service)(nil)
	_ ledger.AccountChecker    = (*accounts.Service)(nil)
)

// ErrFileTooLarge is returned by ReadFile when a statement exceeds
// import.max_file_bytes.
var ErrFileTooLarge = errors.New("file too large")

// ErrNotWorkspace is returned by Open when root has no rpf.yaml.
var ErrNotWorkspace = errors.New("not an rpf workspace")

// Workspace is an opened workspace directory.
type Workspace struct {
	Root     string
	Config   *config.Config
	Accounts *accounts.Service
	Ledger   *ledger.Store
	Imports  *imports.Service
	Logger   *log.Logger
}

// Open loads the workspace at root. A nil logger discards output.
func Open(root string, logger *log.Logger) (*Workspace, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(abs, config.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (run rpf init)", ErrNotWorkspace, abs)
	}
	if err != nil {
		return nil, err
	}

	accts, err := accounts.Load(abs)
	if err != nil {
		return nil, err
	}

	store := ledger.NewStore(abs, accts)
	svc := imports.NewService(store, accts, imports.Options{
		BatchSize: cfg.Import.BatchSize,
		Tolerance: cfg.Tolerance(),
		Logger:    logger.WithPrefix("imports"),
	})

	logger.Debug("workspace opened", "root", abs, "accounts", len(accts.All()))
	return &Workspace{
		Root:     abs,
		Config:   cfg,
		Accounts: accts,
		Ledger:   store,
		Imports:  svc,
		Logger:   logger,
	}, nil
}

// Init creates a new workspace at dir: directory layout, rpf.yaml, an empty
// accounts file and a git repository with an initial commit. It returns the
// commit hash.
func Init(ctx context.Context, dir, name string) (string, error) {
	dirs := []string{
		"accounts",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name)
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	if err := accounts.NewService(nil).Save(dir); err != nil {
		return "", fmt.Errorf("writing accounts: %w", err)
	}

	// Raw downloads stay out of history until they are imported.
	gitignore := "import/*\n!import/.gitkeep\n!import/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return "", fmt.Errorf("writing .gitkeep: %w", err)
	}

	if !gitops.IsRepo(dir) {
		if err := gitops.Init(ctx, dir); err != nil {
			return "", err
		}
	}
	return gitops.CommitAll(ctx, dir, "init: Initialize "+name, author(cfg))
}

func author(cfg *config.Config) gitops.Author {
	return gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
}

// ReadFile loads a statement from disk, enforcing import.max_file_bytes.
// format, when set, forces a parser by name.
func (w *Workspace) ReadFile(path, format string) (imports.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return imports.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > w.Config.Import.MaxFileBytes {
		return imports.File{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFileTooLarge, filepath.Base(path), info.Size(), w.Config.Import.MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return imports.File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return imports.File{Name: filepath.Base(path), Content: string(data), Format: format}, nil
}

// AddAccount registers a local account, saves accounts.csv and commits when
// git.auto_commit is set.
func (w *Workspace) AddAccount(ctx context.Context, name string, accountType model.AccountType, mask string) (model.Account, error) {
	acct, err := w.Accounts.Add(name, accountType, mask)
	if err != nil {
		return model.Account{}, err
	}
	if err := w.Accounts.Save(w.Root); err != nil {
		return model.Account{}, err
	}
	w.Logger.Info("account added", "id", acct.ID, "name", acct.Name, "type", acct.Type)

	if _, err := w.commit(ctx, "account: add "+acct.Name); err != nil {
		return acct, err
	}
	return acct, nil
}

// Record appends a confirmed import to the import log and commits the
// workspace when git.auto_commit is set. It returns the commit hash, or ""
// when nothing was committed.
func (w *Workspace) Record(ctx context.Context, e importlog.Entry) (string, error) {
	if err := importlog.Append(w.Root, []importlog.Entry{e}); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("import: %s (%d imported, %d skipped)", e.File, e.Imported, e.Skipped)
	return w.commit(ctx, msg)
}

func (w *Workspace) commit(ctx context.Context, msg string) (string, error) {
	if !w.Config.Git.AutoCommit || !gitops.IsRepo(w.Root) {
		return "", nil
	}
	changed, err := gitops.HasChanges(ctx, w.Root)
	if err != nil || !changed {
		return "", err
	}
	hash, err := gitops.CommitAll(ctx, w.Root, msg, author(w.Config))
	if err != nil {
		return "", err
	}
	w.Logger.Debug("committed", "hash", hash, "message", msg)
	return hash, nil
}
