// Command generate_demo creates a demo database with a sample catalog,
// patrons and loans, including a couple of loans already past their due date.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/shelfwise/circulation/internal/database"
	"github.com/shelfwise/circulation/internal/database/catalog"
	"github.com/shelfwise/circulation/internal/database/patrons"
	"github.com/shelfwise/circulation/internal/entities"
	"github.com/shelfwise/circulation/internal/lending"
)

const defaultDemoDatabasePath = "./demo/demo.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	catalogRepo := catalog.NewRepository(db.DB)
	patronsRepo := patrons.NewRepository(db.DB)

	books := createBooks(catalogRepo)
	demoPatrons := createPatrons(patronsRepo)

	createLoans(db, books, demoPatrons)

	log.Println("Demo database generated successfully!")
}

// BookConfig pairs book metadata with its author and category names.
type BookConfig struct {
	Title    string
	ISBN     string
	Authors  []string
	Category string
	Copies   int
}

func demoBooks() []BookConfig {
	return []BookConfig{
		{
			Title:    "Meditations",
			Authors:  []string{"Marcus Aurelius"},
			Category: "Non-fiction",
			Copies:   3,
		},
		{
			Title:    "Pride and Prejudice",
			ISBN:     "9780141439518",
			Authors:  []string{"Jane Austen"},
			Category: "Fiction",
			Copies:   2,
		},
		{
			Title:    "On the Origin of Species",
			Authors:  []string{"Charles Darwin"},
			Category: "Science",
			Copies:   1,
		},
		{
			Title:    "The Decline and Fall of the Roman Empire",
			Authors:  []string{"Edward Gibbon"},
			Category: "History",
			Copies:   2,
		},
		{
			Title:    "Grimm's Fairy Tales",
			Authors:  []string{"Jacob Grimm", "Wilhelm Grimm"},
			Category: "Children",
			Copies:   4,
		},
	}
}

func createBooks(repo *catalog.Repository) []entities.Book {
	var books []entities.Book
	for _, cfg := range demoBooks() {
		book := entities.Book{
			Title:       cfg.Title,
			ISBN:        cfg.ISBN,
			TotalCopies: cfg.Copies,
		}

		for _, name := range cfg.Authors {
			author, err := repo.GetOrCreateAuthor(name)
			if err != nil {
				log.Fatalf("Failed to create author %s: %v", name, err)
			}
			book.Authors = append(book.Authors, *author)
		}

		category, err := repo.GetCategoryByName(cfg.Category)
		if err != nil {
			log.Fatalf("Failed to look up category %s: %v", cfg.Category, err)
		}
		book.CategoryID = &category.ID

		if err := repo.CreateBook(&book); err != nil {
			log.Fatalf("Failed to save book %s: %v", book.Title, err)
		}
		log.Printf("Saved: %s (%d copies)", book.Title, book.TotalCopies)
		books = append(books, book)
	}
	return books
}

func createPatrons(repo *patrons.Repository) []entities.Patron {
	configs := []entities.Patron{
		{Name: "Ada Lovelace", Email: "ada@example.com", Role: entities.PatronRoleStaff},
		{Name: "Grace Hopper", Email: "grace@example.com"},
		{Name: "Alan Turing", Email: "alan@example.com"},
	}

	var created []entities.Patron
	for i := range configs {
		if err := repo.CreatePatron(&configs[i]); err != nil {
			log.Fatalf("Failed to create patron %s: %v", configs[i].Name, err)
		}
		log.Printf("Created patron: %s <%s>", configs[i].Name, configs[i].Email)
		created = append(created, configs[i])
	}
	return created
}

func createLoans(db *database.Database, books []entities.Book, demoPatrons []entities.Patron) {
	service := lending.NewService(db.DB, lending.Config{})
	ctx := context.Background()

	// A couple of healthy active loans
	if _, err := service.Borrow(ctx, demoPatrons[1].ID, books[0].ID, time.Time{}); err != nil {
		log.Fatalf("Failed to create loan: %v", err)
	}
	if _, err := service.Borrow(ctx, demoPatrons[2].ID, books[4].ID, time.Time{}); err != nil {
		log.Fatalf("Failed to create loan: %v", err)
	}

	// Two loans already past their due date, so the overdue flow has data
	for _, cfg := range []struct {
		patron entities.Patron
		book   entities.Book
	}{
		{demoPatrons[1], books[1]},
		{demoPatrons[2], books[2]},
	} {
		loan, err := service.Borrow(ctx, cfg.patron.ID, cfg.book.ID, time.Time{})
		if err != nil {
			log.Fatalf("Failed to create loan: %v", err)
		}
		err = db.DB.Model(&entities.Loan{}).
			Where("id = ?", loan.ID).
			Update("due_date", time.Now().Add(-72*time.Hour)).Error
		if err != nil {
			log.Fatalf("Failed to backdate loan %d: %v", loan.ID, err)
		}
	}

	// One loan that has already been returned
	loan, err := service.Borrow(ctx, demoPatrons[1].ID, books[3].ID, time.Time{})
	if err != nil {
		log.Fatalf("Failed to create loan: %v", err)
	}
	if _, err := service.Return(ctx, loan.ID); err != nil {
		log.Fatalf("Failed to return loan %d: %v", loan.ID, err)
	}

	log.Printf("Created 5 loans (2 active, 2 overdue-pending, 1 returned)")
}
