package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	trexport "github.com/DanielFerrariR/tr-exporter"
	"github.com/DanielFerrariR/tr-exporter/traderepublic"
)

// convertCmd implements the "convert" command.
type convertCmd struct {
	account    string
	statements bool
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "converts downloaded transactions into the ledger" }
func (*convertCmd) Usage() string {
	return `convert [-account NUMBER] [-statements=false]:

	Maps the downloaded, detail-enriched transactions of an account into
	the canonical portfolio ledger and writes it next to them. Works
	offline from the downloaded artifacts, except that dividends whose
	details carry no share count are resolved from their statement
	document; -statements=false turns that off.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "account number to convert, defaults to the only downloaded one")
	f.BoolVar(&c.statements, "statements", true, "resolve missing dividend figures from statement documents")
}

func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account, err := resolveAccount(c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	transactions, err := loadTransactions(account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	dir := accountDir(account)
	var opts []trexport.MapOption
	var statements *traderepublic.Statements
	if c.statements {
		statements, err = traderepublic.OpenStatements(
			filepath.Join(dir, statementsFile), http.DefaultClient, traderepublic.ExtractText)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		opts = append(opts, trexport.WithStatements(statements))
	}

	ledger := trexport.MapTransactions(transactions, opts...)

	if statements != nil {
		if err := statements.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot save statement cache: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	if err := writeArtifact(dir, ledgerFile, func(f *os.File) error {
		return trexport.EncodeLedger(f, ledger)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Converted %d transactions into %d ledger entries in %s\n",
		len(transactions), ledger.Len(), filepath.Join(dir, ledgerFile))
	return subcommands.ExitSuccess
}
