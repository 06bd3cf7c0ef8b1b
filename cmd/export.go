package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/DanielFerrariR/tr-exporter/exchange"
	"github.com/DanielFerrariR/tr-exporter/snowball"
)

// exportCmd implements the "export" command.
type exportCmd struct {
	account string
	offline bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "exports the ledger as a Snowball Analytics CSV" }
func (*exportCmd) Usage() string {
	return `export [-account NUMBER] [-offline]:

	Converts an account's ledger into the Snowball Analytics import CSV.
	Instruments traded on the broker's own venue are mapped to XETRA or
	Frankfurt; resolved venues are cached in the build directory, and
	-offline skips the lookup entirely, using the Frankfurt fallback for
	anything not already cached.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "account number to export, defaults to the only downloaded one")
	f.BoolVar(&c.offline, "offline", false, "never query the venue endpoint, rely on the cache and the fallback")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	account, err := resolveAccount(c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ledger, err := loadLedger(account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	client := http.DefaultClient
	if c.offline {
		client = &http.Client{Transport: offlineTransport{}}
	}
	cache := &exchange.FileCache{Path: filepath.Join(*buildDir, exchangeFile)}
	resolver, err := exchange.NewResolver(client, cache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	dir := accountDir(account)
	if err := writeArtifact(dir, snowballFile, func(f *os.File) error {
		return snowball.Export(f, ledger, resolver)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Exported %d ledger entries to %s\n", ledger.Len(), filepath.Join(dir, snowballFile))
	return subcommands.ExitSuccess
}

// offlineTransport refuses every request, which makes the resolver fall
// back to Frankfurt for instruments missing from the cache.
type offlineTransport struct{}

func (offlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("offline export, refusing request to %s", req.URL.Host)
}
