package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/autom8ter/docrepo"
	"github.com/autom8ter/docrepo/store"
	_ "github.com/autom8ter/docrepo/store/kvstore"
	"github.com/brianvoe/gofakeit/v6"
)

// Contact is a nested record
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Pet is an array element record
type Pet struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// User is a test record keyed by id
type User struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Age      int       `json:"age"`
	Language string    `json:"language"`
	Tags     []string  `json:"tags"`
	Contact  Contact   `json:"contact"`
	Pets     []Pet     `json:"pets"`
	Nickname *string   `json:"nickname"`
	Created  time.Time `json:"created"`
}

// Task is a test record keyed by id that references a User
type Task struct {
	ID      string `json:"id,omitempty"`
	User    string `json:"user"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

var (
	UserCollection = docrepo.CollectionConfig{
		Name:    "user",
		IDField: "id",
		Indexes: []store.Index{
			{Name: "user_email_idx", Fields: []string{"contact.email"}, Unique: true},
			{Name: "user_language_idx", Fields: []string{"language"}},
		},
	}
	TaskCollection = docrepo.CollectionConfig{
		Name:    "task",
		IDField: "id",
		Indexes: []store.Index{
			{Name: "task_user_idx", Fields: []string{"user"}},
		},
	}
	AllCollections = []docrepo.CollectionConfig{UserCollection, TaskCollection}
)

// NewUser returns a user without identity
func NewUser() User {
	return User{
		Name:     gofakeit.Name(),
		Age:      gofakeit.IntRange(1, 100),
		Language: gofakeit.Language(),
		Tags:     []string{gofakeit.HipsterWord(), gofakeit.HipsterWord()},
		Contact: Contact{
			Email: fmt.Sprintf("%s.%s@%s", gofakeit.Username(), gofakeit.LetterN(10), gofakeit.DomainName()),
			Phone: gofakeit.Phone(),
		},
		Pets: []Pet{
			{Name: gofakeit.PetName(), Kind: gofakeit.Animal()},
		},
		Created: gofakeit.DateRange(time.Now().Add(-7200*time.Hour), time.Now()).UTC().Truncate(time.Second),
	}
}

// NewTask returns a task of the user without identity
func NewTask(userID string) Task {
	return Task{
		User:    userID,
		Content: gofakeit.LoremIpsumSentence(5),
	}
}

// TestManager runs fn against a manager over an in-memory badger store. AllCollections are
// registered when no collections are given.
func TestManager(fn func(ctx context.Context, m *docrepo.Manager), collections ...docrepo.CollectionConfig) error {
	if len(collections) == 0 {
		collections = append(collections, AllCollections...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger, err := docrepo.NewLogger("error", map[string]any{})
	if err != nil {
		return err
	}
	m, err := docrepo.Open(ctx, "badger", map[string]any{},
		docrepo.WithLogger(logger),
		docrepo.WithCollections(collections...),
	)
	if err != nil {
		return err
	}
	defer m.Close(ctx)
	fn(ctx, m)
	return nil
}
