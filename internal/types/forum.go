package types

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

type Thread struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CategoryID uuid.UUID `json:"category_id"`
	UserID     uuid.UUID `json:"user_id"`
	Author     string    `json:"author"`
	Title      string    `json:"title"`
	PostCount  int       `json:"post_count"`
}

type Post struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ThreadID  uuid.UUID `json:"thread_id"`
	UserID    uuid.UUID `json:"user_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
}

// Stats summarizes table sizes for the admin dashboard.
type Stats struct {
	Users      int `json:"users"`
	Categories int `json:"categories"`
	Threads    int `json:"threads"`
	Posts      int `json:"posts"`
}
