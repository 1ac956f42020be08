// Package seed loads development fixtures into the SQLite stores: two
// campuses, five verified accounts, a handful of listings and one
// conversation.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuscycle/campuscycle/internal/platform/cmd"
	"github.com/campuscycle/campuscycle/internal/platform/id"
	"github.com/campuscycle/campuscycle/internal/server"
	authstorage "github.com/campuscycle/campuscycle/internal/services/auth/storage"
	authsqlite "github.com/campuscycle/campuscycle/internal/services/auth/storage/sqlite"
	chatstorage "github.com/campuscycle/campuscycle/internal/services/chat/storage"
	chatsqlite "github.com/campuscycle/campuscycle/internal/services/chat/storage/sqlite"
	marketstorage "github.com/campuscycle/campuscycle/internal/services/market/storage"
	marketsqlite "github.com/campuscycle/campuscycle/internal/services/market/storage/sqlite"
)

const seedPassword = "password123"

// Run loads the fixtures into the databases under the configured data dir.
func Run(ctx context.Context, args []string) error {
	var cfg server.Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet(cmd.ServiceSeed, flag.ContinueOnError)
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for SQLite databases")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return err
	}

	return cmd.RunWithTelemetry(ctx, cmd.ServiceSeed, func(ctx context.Context) error {
		return seed(ctx, cfg.DataDir)
	})
}

func newCampus(now time.Time, name, code string) (authstorage.Campus, error) {
	campusID, err := id.NewID()
	if err != nil {
		return authstorage.Campus{}, fmt.Errorf("new campus id: %w", err)
	}
	return authstorage.Campus{ID: campusID, Name: name, Code: code, CreatedAt: now}, nil
}

func newUser(now time.Time, hash, email, name, campusID string, role authstorage.Role) (authstorage.User, error) {
	userID, err := id.NewID()
	if err != nil {
		return authstorage.User{}, fmt.Errorf("new user id: %w", err)
	}
	return authstorage.User{
		ID:           userID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CampusID:     campusID,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func newListing(now time.Time, seller authstorage.User, title, description, category, condition string,
	priceCents int64, giveaway bool, status marketstorage.ListingStatus,
	location, zipcode, imageURL string) (marketstorage.Listing, error) {
	listingID, err := id.NewID()
	if err != nil {
		return marketstorage.Listing{}, fmt.Errorf("new listing id: %w", err)
	}
	imageID, err := id.NewID()
	if err != nil {
		return marketstorage.Listing{}, fmt.Errorf("new image id: %w", err)
	}
	return marketstorage.Listing{
		ID:          listingID,
		SellerID:    seller.ID,
		CampusID:    seller.CampusID,
		Title:       title,
		Description: description,
		Category:    category,
		Condition:   condition,
		PriceCents:  priceCents,
		Giveaway:    giveaway,
		Status:      status,
		Location:    location,
		Zipcode:     zipcode,
		CreatedAt:   now,
		UpdatedAt:   now,
		Images: []marketstorage.ListingImage{
			{ID: imageID, ListingID: listingID, URL: imageURL, Position: 0},
		},
	}, nil
}

func newMessage(threadID, senderID, body string, sentAt time.Time) (chatstorage.Message, error) {
	messageID, err := id.NewID()
	if err != nil {
		return chatstorage.Message{}, fmt.Errorf("new message id: %w", err)
	}
	return chatstorage.Message{
		ID:        messageID,
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: sentAt,
	}, nil
}

func seed(ctx context.Context, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	authStore, err := authsqlite.Open(filepath.Join(dataDir, "auth.db"))
	if err != nil {
		return fmt.Errorf("open auth store: %w", err)
	}
	defer authStore.Close()
	marketStore, err := marketsqlite.Open(filepath.Join(dataDir, "market.db"))
	if err != nil {
		return fmt.Errorf("open market store: %w", err)
	}
	defer marketStore.Close()
	chatStore, err := chatsqlite.Open(filepath.Join(dataDir, "chat.db"))
	if err != nil {
		return fmt.Errorf("open chat store: %w", err)
	}
	defer chatStore.Close()

	rawHash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	hash := string(rawHash)

	now := time.Now().UTC()

	stateU, err := newCampus(now, "State University", "stateu")
	if err != nil {
		return err
	}
	techU, err := newCampus(now, "Tech University", "techu")
	if err != nil {
		return err
	}
	for _, campus := range []authstorage.Campus{stateU, techU} {
		if err := authStore.PutCampus(ctx, campus); err != nil {
			return fmt.Errorf("seed campus %s: %w", campus.Code, err)
		}
	}

	alice, err := newUser(now, hash, "alice@stateu.edu", "Alice Johnson", stateU.ID, authstorage.RoleAdmin)
	if err != nil {
		return err
	}
	bob, err := newUser(now, hash, "bob@stateu.edu", "Bob Smith", stateU.ID, authstorage.RoleStudent)
	if err != nil {
		return err
	}
	charlie, err := newUser(now, hash, "charlie@stateu.edu", "Charlie Brown", stateU.ID, authstorage.RoleStudent)
	if err != nil {
		return err
	}
	diana, err := newUser(now, hash, "diana@techu.edu", "Diana Prince", techU.ID, authstorage.RoleStudent)
	if err != nil {
		return err
	}
	eve, err := newUser(now, hash, "eve@techu.edu", "Eve Wilson", techU.ID, authstorage.RoleStudent)
	if err != nil {
		return err
	}
	for _, user := range []authstorage.User{alice, bob, charlie, diana, eve} {
		if err := authStore.PutUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.Email, err)
		}
	}

	textbook, err := newListing(now, alice, "Calculus Textbook - Used but Good",
		"Calculus textbook used for one semester. Good condition with some highlighting.",
		"textbooks", "good", 1500, false, marketstorage.StatusAvailable,
		"State University Library", "12345", "/uploads/calc-book.jpg")
	if err != nil {
		return err
	}
	chair, err := newListing(now, bob, "Free Desk Chair",
		"Office chair in good condition. Moving out and need to get rid of it.",
		"furniture", "good", 0, true, marketstorage.StatusAvailable,
		"State University Dorms", "12345", "/uploads/chair.jpg")
	if err != nil {
		return err
	}
	laptop, err := newListing(now, charlie, "Laptop - Slightly Used",
		"MacBook Pro 13\" from 2020. Still works great, just upgrading.",
		"electronics", "excellent", 45000, false, marketstorage.StatusClaimed,
		"State University Campus", "12345", "/uploads/laptop.jpg")
	if err != nil {
		return err
	}
	books, err := newListing(now, diana, "Programming Textbooks Bundle",
		"Data Structures, Algorithms, and OS books. All in great condition.",
		"textbooks", "excellent", 5000, false, marketstorage.StatusAvailable,
		"Tech University Bookstore", "54321", "/uploads/cs-books.jpg")
	if err != nil {
		return err
	}
	plants, err := newListing(now, eve, "Free Plant Collection",
		"Moving out and can't take my plants. Free to good home!",
		"other", "good", 0, true, marketstorage.StatusAvailable,
		"Tech University Apartments", "54321", "/uploads/plants.jpg")
	if err != nil {
		return err
	}
	listings := []marketstorage.Listing{textbook, chair, laptop, books, plants}
	for _, listing := range listings {
		if err := marketStore.PutListing(ctx, listing); err != nil {
			return fmt.Errorf("seed listing %q: %w", listing.Title, err)
		}
	}

	// Bob asks Alice about the textbook; her reply is already read.
	threadID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("new thread id: %w", err)
	}
	thread := chatstorage.Thread{
		ID:        threadID,
		ListingID: textbook.ID,
		BuyerID:   bob.ID,
		SellerID:  alice.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := chatStore.PutThread(ctx, thread); err != nil {
		return fmt.Errorf("seed thread: %w", err)
	}

	question, err := newMessage(thread.ID, bob.ID, "Hi! Is the calculus textbook still available?", now)
	if err != nil {
		return err
	}
	reply, err := newMessage(thread.ID, alice.ID, "Yes, it is! Would you like to meet up tomorrow?", now.Add(time.Minute))
	if err != nil {
		return err
	}
	for _, message := range []chatstorage.Message{question, reply} {
		if _, err := chatStore.AppendMessage(ctx, message); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}
	if _, err := chatStore.MarkRead(ctx, thread.ID, bob.ID, now.Add(2*time.Minute)); err != nil {
		return fmt.Errorf("seed read receipt: %w", err)
	}

	log.Printf("seeded 2 campuses, 5 users, %d listings, 1 conversation", len(listings))
	log.Printf("test accounts use password %q", seedPassword)
	return nil
}
