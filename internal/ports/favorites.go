package ports

import (
	"context"
	"time"
)

// Favorite is a listing a user pinned into a named list.
type Favorite struct {
	ID          int64          `json:"id"`
	ListName    string         `json:"list_name"`
	Location    string         `json:"location"`
	ListingData map[string]any `json:"listing_data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FavoriteStore persists pinned listings across searches. List with an
// empty listName returns favorites from every list.
type FavoriteStore interface {
	Add(ctx context.Context, listName, location string, listing map[string]any) (int64, error)
	Get(ctx context.Context, id int64) (Favorite, bool, error)
	List(ctx context.Context, listName string) ([]Favorite, error)
	ListNames(ctx context.Context) ([]string, error)
	RenameList(ctx context.Context, oldName, newName string) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
