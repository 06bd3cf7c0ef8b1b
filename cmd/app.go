// Package cmd implements the CLI application that downloads, converts
// and exports a brokerage account's history.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	trexport "github.com/DanielFerrariR/tr-exporter"
)

// Register the subcommands.
// A main package calls Register() to wire the subcommands, then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&downloadCmd{}, "pipeline")
	c.Register(&convertCmd{}, "pipeline")
	c.Register(&exportCmd{}, "pipeline")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var buildDir = flag.String("build-dir", "build", "Directory holding downloaded and converted artifacts, one subdirectory per account")

// Artifact file names inside an account's directory.
const (
	accountInfoFile  = "accountInformation.json"
	activitiesFile   = "activities.jsonl"
	transactionsFile = "transactions.jsonl"
	ledgerFile       = "ledger.jsonl"
	snowballFile     = "snowballTransactions.csv"
	exchangeFile     = "isinToExchange.json"
	statementsFile   = "dividendStatements.json"
)

// accountDir returns the artifact directory of one account.
func accountDir(accountNumber string) string {
	return filepath.Join(*buildDir, accountNumber)
}

// resolveAccount picks the account to operate on. An explicit flag wins;
// otherwise the single account directory under the build dir is used,
// and anything else is an error the user has to settle with -account.
func resolveAccount(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	entries, err := os.ReadDir(*buildDir)
	if err != nil {
		return "", fmt.Errorf("cannot list %q (download first?): %w", *buildDir, err)
	}
	var accounts []string
	for _, e := range entries {
		if e.IsDir() {
			accounts = append(accounts, e.Name())
		}
	}
	switch len(accounts) {
	case 0:
		return "", fmt.Errorf("no account directory under %q, download first", *buildDir)
	case 1:
		return accounts[0], nil
	default:
		return "", fmt.Errorf("multiple accounts under %q %v, pick one with -account", *buildDir, accounts)
	}
}

// writeArtifact writes one artifact file, creating the account directory
// as needed.
func writeArtifact(dir, name string, encode func(f *os.File) error) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	return f.Close()
}

// loadTransactions reads an account's enriched transaction list back.
func loadTransactions(accountNumber string) ([]*trexport.Transaction, error) {
	path := filepath.Join(accountDir(accountNumber), transactionsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q (download first?): %w", path, err)
	}
	defer f.Close()
	return trexport.DecodeTransactions(f)
}

// loadLedger reads an account's converted ledger back.
func loadLedger(accountNumber string) (*trexport.Ledger, error) {
	path := filepath.Join(accountDir(accountNumber), ledgerFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q (convert first?): %w", path, err)
	}
	defer f.Close()
	return trexport.DecodeLedger(f)
}
