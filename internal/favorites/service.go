// Package favorites wraps the favorite store with input checks so the HTTP
// layer stays thin.
package favorites

import (
	"context"
	"errors"
	"strings"

	"stayscout/internal/ports"
)

// DefaultList receives favorites saved without an explicit list name.
const DefaultList = "favorites"

var (
	ErrInvalidInput = errors.New("invalid favorites input")

	// ErrNotFound is returned for ids no stored favorite carries.
	ErrNotFound = errors.New("favorite not found")
)

type Service struct {
	store ports.FavoriteStore
}

func New(store ports.FavoriteStore) *Service {
	return &Service{store: store}
}

func cleanListName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultList
	}
	return name
}

func (s *Service) Add(ctx context.Context, listName, location string, listing map[string]any) (int64, error) {
	if len(listing) == 0 {
		return 0, errors.Join(ErrInvalidInput, errors.New("listing payload is empty"))
	}
	return s.store.Add(ctx, cleanListName(listName), strings.TrimSpace(location), listing)
}

func (s *Service) Get(ctx context.Context, id int64) (ports.Favorite, error) {
	f, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return f, err
	}
	if !ok {
		return f, ErrNotFound
	}
	return f, nil
}

// List returns the favorites in listName; with an empty name it returns
// favorites from every list.
func (s *Service) List(ctx context.Context, listName string) ([]ports.Favorite, error) {
	return s.store.List(ctx, strings.TrimSpace(listName))
}

func (s *Service) ListNames(ctx context.Context) ([]string, error) {
	return s.store.ListNames(ctx)
}

func (s *Service) RenameList(ctx context.Context, oldName, newName string) (bool, error) {
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return false, errors.Join(ErrInvalidInput, errors.New("list names must be non-empty"))
	}
	if oldName == newName {
		return false, errors.Join(ErrInvalidInput, errors.New("new list name equals the old one"))
	}
	return s.store.RenameList(ctx, oldName, newName)
}

func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, errors.Join(ErrInvalidInput, errors.New("id must be positive"))
	}
	return s.store.Delete(ctx, id)
}
