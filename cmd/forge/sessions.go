package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"intentforge/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect refinement sessions",
	Long: `List and inspect refinement sessions.

Subcommands:
  list   - List sessions from the analytics mirror
  show   - Show the live state of one session`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions from the analytics mirror",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the live state of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Session.MirrorPath == "" {
		return fmt.Errorf("no analytics mirror configured")
	}
	if _, err := os.Stat(cfg.Session.MirrorPath); err != nil {
		fmt.Println("No sessions recorded yet.")
		return nil
	}

	db, err := sql.Open("sqlite3", cfg.Session.MirrorPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open analytics mirror: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, owner_id, status, asset_type, turn_count,
		       grounding_calls, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT 50`)
	if err != nil {
		return fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tSTATUS\tASSET\tTURNS\tGROUNDED\tUPDATED")

	count := 0
	for rows.Next() {
		var id, owner, status, asset string
		var turns, grounded int
		var updated time.Time
		if err := rows.Scan(&id, &owner, &status, &asset, &turns, &grounded, &updated); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			id, owner, status, asset, turns, grounded, updated.Local().Format("2006-01-02 15:04"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Flush()

	if count == 0 {
		fmt.Println("No sessions recorded yet.")
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.coach.GetState(ctx, args[0], ownerID)
	if err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}
