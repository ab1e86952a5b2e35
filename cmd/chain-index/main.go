// Command chain-index wires config -> SQL store -> restore -> control and
// query handlers. It does not implement a follower or an RPC shell (those
// stay external collaborators); it restores from disk, prints diagnostics,
// and, when given -demo, walks a tiny synthetic chain of blocks through
// the handlers to demonstrate the wiring end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rubin.dev/cix/blockcache"
	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/config"
	"rubin.dev/cix/control"
	"rubin.dev/cix/query"
	"rubin.dev/cix/restore"
	"rubin.dev/cix/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := config.DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("chain-index", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DBPath, "db", defaults.DBPath, "sqlite database path")
	fs.Uint64Var(&cfg.Depth, "depth", defaults.Depth, "rollback window depth, in blocks")
	fs.IntVar(&cfg.BatchSize, "batch-size", defaults.BatchSize, "row batch size for bulk inserts")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	demo := fs.Bool("demo", false, "walk a tiny synthetic chain through the handlers and exit")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := printConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer db.Close()
	db.SetBatchSize(cfg.BatchSize)

	cache, err := blockcache.Open(cfg.DBPath + "-blocks.bolt")
	if err != nil {
		fmt.Fprintf(stderr, "block cache open failed: %v\n", err)
		return 2
	}
	defer cache.Close()

	idx, err := restore.RestoreStateFromDB(ctx, db)
	if err != nil {
		fmt.Fprintf(stderr, "restore failed: %v\n", err)
		return 2
	}
	cell := chainindex.NewCell(idx)

	ctrl := control.New(db, cell, cfg.Depth, logger)
	q := query.New(cell, db)

	if *demo {
		if err := runDemo(ctx, ctrl, q, cache, stdout); err != nil {
			fmt.Fprintf(stderr, "demo failed: %v\n", err)
			return 2
		}
		return 0
	}

	diag := ctrl.GetDiagnostics(ctx)
	fmt.Fprintf(stdout, "tip=%s diagnostics=%+v\n", cell.Tip().ID, diag)

	fmt.Fprintln(stdout, "chain-index running")
	<-ctx.Done()
	fmt.Fprintln(stdout, "chain-index stopped")
	return 0
}

func printConfig(w io.Writer, cfg config.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runDemo applies three synthetic blocks, runs a rollback, queries the
// result, and prints what happened — exercising AppendBlock, Rollback,
// UtxoSetAtAddress and GetDiagnostics end to end without a real upstream
// follower; the other control and query operations are not run. Each
// block's body is cached before it is applied, standing in for the
// upstream follower that would populate the cache so a later ResumeSync
// can replay from it rather than re-fetching from the network.
func runDemo(ctx context.Context, ctrl *control.Handler, q *query.Handler, cache *blockcache.Cache, stdout io.Writer) error {
	mkID := func(b byte) chainindex.BlockID {
		var id chainindex.BlockID
		id[0] = b
		return id
	}
	mkTxID := func(b byte) chainindex.TxID {
		var id chainindex.TxID
		id[0] = b
		return id
	}
	addr := chainindex.Credential{}
	addr.Bytes[0] = 0x42

	blocks := []chainindex.ChainSyncBlock{
		{
			Tip: chainindex.NewTip(10, mkID(1), 1),
			Transactions: []chainindex.TxWithStoreFlag{{
				Tx:      chainindex.Tx{ID: mkTxID(1), Outputs: []chainindex.TxOutput{{Address: addr, Lovelace: 1_000_000}}},
				StoreTx: true,
			}},
		},
		{
			Tip: chainindex.NewTip(20, mkID(2), 2),
			Transactions: []chainindex.TxWithStoreFlag{{
				Tx:      chainindex.Tx{ID: mkTxID(2), Outputs: []chainindex.TxOutput{{Address: addr, Lovelace: 2_000_000}}},
				StoreTx: true,
			}},
		},
		{
			Tip: chainindex.NewTip(30, mkID(3), 3),
			Transactions: []chainindex.TxWithStoreFlag{{
				Tx: chainindex.Tx{
					ID:      mkTxID(3),
					Inputs:  []chainindex.TxOutRef{{TxID: mkTxID(1), Index: 0}},
					Outputs: []chainindex.TxOutput{{Address: addr, Lovelace: 3_000_000}},
				},
				StoreTx: true,
			}},
		},
	}

	for _, b := range blocks {
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode block at slot %d: %w", b.Tip.Slot, err)
		}
		if err := cache.Put(b.Tip.ID, raw); err != nil {
			return fmt.Errorf("cache block at slot %d: %w", b.Tip.Slot, err)
		}
		if err := ctrl.AppendBlock(ctx, b); err != nil {
			return fmt.Errorf("append block at slot %d: %w", b.Tip.Slot, err)
		}
		fmt.Fprintf(stdout, "appended block slot=%d\n", b.Tip.Slot)
	}

	page, err := q.UtxoSetAtAddress(ctx, query.PageQuery{PageSize: 10}, addr)
	if err != nil {
		return fmt.Errorf("utxo set at address: %w", err)
	}
	fmt.Fprintf(stdout, "utxos at address: %v\n", page.Items)

	if err := ctrl.Rollback(ctx, chainindex.NewPoint(20, mkID(2))); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintln(stdout, "rolled back to slot 20")

	rolledBack := blocks[2].Tip.ID
	if err := cache.Delete(rolledBack); err != nil {
		return fmt.Errorf("evict cached block %x: %w", rolledBack, err)
	}
	if _, ok, err := cache.Get(rolledBack); err != nil {
		return fmt.Errorf("check evicted block %x: %w", rolledBack, err)
	} else if ok {
		return fmt.Errorf("expected block %x to be evicted from cache", rolledBack)
	}
	fmt.Fprintf(stdout, "evicted cached block slot=%d\n", blocks[2].Tip.Slot)

	page, err = q.UtxoSetAtAddress(ctx, query.PageQuery{PageSize: 10}, addr)
	if err != nil {
		return fmt.Errorf("utxo set at address after rollback: %w", err)
	}
	fmt.Fprintf(stdout, "utxos at address after rollback: %v\n", page.Items)

	diag := ctrl.GetDiagnostics(ctx)
	fmt.Fprintf(stdout, "diagnostics: %+v\n", diag)
	return nil
}
