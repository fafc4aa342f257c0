// Command moneta is a small shell around the store engine: it lists the
// available encrypted stores and can open one to print a summary of its
// contents. The full UI lives elsewhere; this binary exists for inspection
// and smoke-testing a store file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mkarpenko/moneta/internal/cache"
	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/config"
	"github.com/mkarpenko/moneta/internal/logging"
	"github.com/mkarpenko/moneta/internal/store"
)

// flags whose value occupies the following argument; skipped when looking
// for the store-name positional.
var valueFlags = map[string]struct{}{
	"-d": {}, "-w": {}, "-s": {}, "-b": {}, "-c": {}, "-config": {},
}

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	name := storeNameArg(os.Args[1:])
	if name == "" {
		if err := listStores(cfg); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := openAndSummarize(cfg, name, logger); err != nil {
		log.Fatalf("%v", err)
	}
}

func listStores(cfg *config.Config) error {
	names, err := store.ListStores(cfg.DataDir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("no stores in %s\n", cfg.DataDir)
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func openAndSummarize(cfg *config.Config, name string, logger logging.Logger) error {
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx := context.Background()
	h, err := store.Open(ctx, cfg, name, password, logger)
	if err != nil {
		if errors.Is(err, common.ErrPassword) {
			return fmt.Errorf("wrong password for store %q, please try again", name)
		}
		return err
	}
	defer h.Close()

	snap := h.Snapshot()
	fmt.Printf("store %q: %d banks, %d accounts, %d transactions, %d budgets, %d bills\n",
		name, len(snap.Banks), len(snap.Accounts), len(snap.Transactions),
		len(snap.Budgets), len(snap.Bills))

	for _, bank := range snap.Banks {
		bv := cache.BuildBankView(bank, snap)
		fmt.Printf("  %s\n", bank.Name)
		for _, acct := range bv.Accounts {
			av := cache.BuildAccountView(acct, snap)
			fmt.Printf("    %-24s %-10s balance %.2f (%d transactions)\n",
				acct.Name, acct.Type, av.Balance, len(av.Transactions))
		}
	}
	return nil
}

func getPassword(w *os.File) ([]byte, error) {
	fmt.Fprint(w, "Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return password, nil
}

// storeNameArg returns the first positional argument, skipping known flags
// and their values.
func storeNameArg(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if _, ok := valueFlags[arg]; ok && !strings.Contains(arg, "=") {
				i++
			}
			continue
		}
		return arg
	}
	return ""
}
