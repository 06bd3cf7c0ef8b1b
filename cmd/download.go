package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	trexport "github.com/DanielFerrariR/tr-exporter"
	"github.com/DanielFerrariR/tr-exporter/ingest"
	"github.com/DanielFerrariR/tr-exporter/traderepublic"
)

const sessionTokenEnv = "TR_SESSION_TOKEN"

// downloadCmd implements the "download" command.
type downloadCmd struct {
	endpoint  string
	tokenFlag string
	locale    string
	strict    bool
}

func (*downloadCmd) Name() string     { return "download" }
func (*downloadCmd) Synopsis() string { return "downloads the full account history from the broker" }
func (*downloadCmd) Usage() string {
	return `download [-endpoint URL] [-token TOKEN] [-strict]:

	Connects to the broker, fetches account information, the complete
	activity and transaction timelines and every transaction's details,
	and writes them under <build-dir>/<accountNumber>/.

	Requires a session token, passed with -token or the ` + sessionTokenEnv + `
	environment variable. Obtaining the token (login) is out of scope.
`
}

func (c *downloadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.endpoint, "endpoint", traderepublic.DefaultEndpoint, "websocket endpoint of the broker")
	f.StringVar(&c.tokenFlag, "token", "", "session token. This flag takes precedence over the "+sessionTokenEnv+" environment variable")
	f.StringVar(&c.locale, "locale", "en", "locale announced to the broker, titles and subtitles follow it")
	f.BoolVar(&c.strict, "strict", false, "treat unrecognized records as fatal instead of skipping them")
}

func (c *downloadCmd) token() string {
	if c.tokenFlag == "" {
		c.tokenFlag = os.Getenv(sessionTokenEnv)
	}
	return c.tokenFlag
}

func (c *downloadCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	token := c.token()
	if token == "" {
		fmt.Fprintf(os.Stderr, "Error: session token is not set. Use -token flag or %s environment variable\n", sessionTokenEnv)
		return subcommands.ExitFailure
	}

	client, err := traderepublic.Dial(c.endpoint, token, c.locale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not connect: %v\n", err)
		return subcommands.ExitFailure
	}

	var opts []ingest.Option
	if c.strict {
		opts = append(opts, ingest.Strict())
	}
	machine := ingest.New(client, opts...)
	if err := client.Run(machine); err != nil {
		fmt.Fprintf(os.Stderr, "Error: download failed: %v\n", err)
		return subcommands.ExitFailure
	}
	result, err := machine.Result()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: download failed: %v\n", err)
		return subcommands.ExitFailure
	}

	dir := accountDir(result.Account.AccountNumber)
	if err := persistResult(dir, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Downloaded %d activities and %d transactions into %s (cash balance %s)\n",
		len(result.Activities), len(result.Transactions), dir, result.Account.Balance())
	return subcommands.ExitSuccess
}

// persistResult writes every downloaded artifact into the account's
// directory.
func persistResult(dir string, result *ingest.Result) error {
	if err := writeArtifact(dir, accountInfoFile, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Account)
	}); err != nil {
		return err
	}
	if err := writeArtifact(dir, activitiesFile, func(f *os.File) error {
		return trexport.EncodeActivities(f, result.Activities)
	}); err != nil {
		return err
	}
	return writeArtifact(dir, transactionsFile, func(f *os.File) error {
		return trexport.EncodeTransactions(f, result.Transactions)
	})
}
