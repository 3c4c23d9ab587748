// Package cli implements the one-shot commands exposed by the binary.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/database"
	"github.com/shelfwise/circulation/internal/lending"
)

// MarkOverdueCommand runs the overdue sweep once against a database file and
// exits. Useful from cron on hosts that don't keep the server running.
type MarkOverdueCommand struct {
	DatabasePath string
	AsOf         string
	Verbose      bool
}

func NewMarkOverdueCommand() *MarkOverdueCommand {
	return &MarkOverdueCommand{}
}

func (cmd *MarkOverdueCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("mark-overdue", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.AsOf, "as-of", "", "Evaluate due dates against this RFC 3339 time instead of now")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print each transitioned loan")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s mark-overdue [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Transition all borrowed loans past their due date to overdue.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s mark-overdue\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mark-overdue -db ./circulation.db -verbose\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *MarkOverdueCommand) Run() error {
	asOf := time.Now()
	if cmd.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, cmd.AsOf)
		if err != nil {
			return fmt.Errorf("invalid -as-of value: %w", err)
		}
		asOf = parsed
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	service := lending.NewService(db.DB, lending.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := service.SweepOverdue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("Marked %d loans overdue\n", len(swept))
	if cmd.Verbose {
		for _, loan := range swept {
			fmt.Printf("  loan %d (patron %d, book %d), due %s\n",
				loan.ID, loan.PatronID, loan.BookID, loan.DueDate.Format("2006-01-02"))
		}
	}
	return nil
}
