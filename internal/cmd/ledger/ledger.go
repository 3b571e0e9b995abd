// Package ledger implements the verification and maintenance CLI for the
// event log and its read models.
//
// Subcommands:
//
//	verify    recompute the hash chain and reconcile read models (default)
//	replay    rebuild read models from the event log
//	backfill  populate missing event hashes in id order
package ledger

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	platformcmd "github.com/louisbranch/rivalry.club/internal/platform/cmd"
	"github.com/louisbranch/rivalry.club/internal/projection"
	"github.com/louisbranch/rivalry.club/internal/storage/sqlite"
)

// Config holds ledger command configuration.
type Config struct {
	Command   string
	MatchUUID string
	DBPath    string        `env:"RIVALRY_CLUB_DB_PATH"`
	Timeout   time.Duration `env:"RIVALRY_CLUB_LEDGER_TIMEOUT" envDefault:"10m"`
}

// ParseConfig loads env defaults, parses flags, and picks the subcommand from
// the first positional argument.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "rivalry.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to sqlite database (default: RIVALRY_CLUB_DB_PATH or data/rivalry.db)")
	fs.StringVar(&cfg.MatchUUID, "match", "", "restrict replay to one match aggregate")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.Command = fs.Arg(0)
	if cfg.Command == "" {
		cfg.Command = "verify"
	}
	switch cfg.Command {
	case "verify", "replay", "backfill":
	default:
		return Config{}, fmt.Errorf("unknown command %q (want verify, replay, or backfill)", cfg.Command)
	}
	if cfg.MatchUUID != "" && cfg.Command != "replay" {
		return Config{}, errors.New("-match only applies to replay")
	}
	return cfg, nil
}

// Run executes the ledger command against the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "close store: %v\n", closeErr)
		}
	}()

	switch cfg.Command {
	case "verify":
		return runVerify(ctx, store, out)
	case "replay":
		return runReplay(ctx, store, cfg.MatchUUID, out)
	case "backfill":
		return runBackfill(ctx, store, out)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

// runVerify checks the hash chain and reconciles both read models, printing
// one line per discrepancy. It reports everything it finds and repairs
// nothing.
func runVerify(ctx context.Context, store *sqlite.Store, out io.Writer) error {
	discrepancies, err := store.VerifyChain(ctx)
	if err != nil {
		return fmt.Errorf("verify chain: %w", err)
	}
	for _, d := range discrepancies {
		fmt.Fprintf(out, "event_id=%d error=%s expected=%s actual=%s\n",
			d.EventID, d.Kind, d.Expected, d.Actual)
	}

	log, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load event log: %w", err)
	}
	matchIssues, err := projection.VerifyMatches(ctx, log, store)
	if err != nil {
		return fmt.Errorf("verify matches: %w", err)
	}
	ratingIssues, err := projection.VerifyRatings(ctx, log, store, store)
	if err != nil {
		return fmt.Errorf("verify ratings: %w", err)
	}
	for _, issue := range append(matchIssues, ratingIssues...) {
		fmt.Fprintf(out, "kind=%s subject=%q detail=%q\n", issue.Kind, issue.Subject, issue.Detail)
	}

	total := len(discrepancies) + len(matchIssues) + len(ratingIssues)
	if total > 0 {
		return fmt.Errorf("verification found %d discrepancies", total)
	}
	fmt.Fprintf(out, "verified %d events, no discrepancies\n", len(log))
	return nil
}

// runReplay rebuilds read models from the log. With a match UUID it rebuilds
// that one match; otherwise it rebuilds every projected match and all rating
// rows.
func runReplay(ctx context.Context, store *sqlite.Store, matchUUID string, out io.Writer) error {
	if matchUUID != "" {
		if err := projection.RebuildMatch(ctx, store, store, matchUUID); err != nil {
			return fmt.Errorf("rebuild match %s: %w", matchUUID, err)
		}
		fmt.Fprintf(out, "rebuilt match %s\n", matchUUID)
		return nil
	}

	uuids, err := store.ListMatchAggregateUUIDs(ctx)
	if err != nil {
		return fmt.Errorf("list match aggregates: %w", err)
	}
	for _, uuid := range uuids {
		if err := projection.RebuildMatch(ctx, store, store, uuid); err != nil {
			return fmt.Errorf("rebuild match %s: %w", uuid, err)
		}
	}
	if err := projection.RebuildRatings(ctx, store, store, store); err != nil {
		return fmt.Errorf("rebuild ratings: %w", err)
	}
	fmt.Fprintf(out, "rebuilt %d matches and all rating rows\n", len(uuids))
	return nil
}

// runBackfill hashes unhashed tail records and reports how many it repaired.
func runBackfill(ctx context.Context, store *sqlite.Store, out io.Writer) error {
	repaired, err := store.HashBackfill(ctx)
	if err != nil {
		return fmt.Errorf("backfill hashes: %w", err)
	}
	fmt.Fprintf(out, "backfilled %d event hashes\n", repaired)
	return nil
}
