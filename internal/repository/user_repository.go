package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

// CollectionUsers holds account documents keyed by user id.
const CollectionUsers = "users"

// UserRepository provides document access for user accounts.
type UserRepository struct {
	users *Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(store *DocumentStore) *UserRepository {
	return &UserRepository{users: store.Collection(CollectionUsers)}
}

// FindByEmail returns a user by (case-insensitive) email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := r.users.Query(ctx, Query{
		Filters: []Filter{Where("email", strings.ToLower(strings.TrimSpace(email)))},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	return decodeUser(docs[0])
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(*doc)
}

// Create stores a new user document; the email is normalised to lower case.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.users.Create(ctx, user.ID, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateRole rewrites the role claim and revokes tokens issued before validAfter.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.Role, validAfter time.Time) error {
	patch := map[string]interface{}{
		"role":             role,
		"tokensValidAfter": validAfter.UTC(),
		"updatedAt":        validAfter.UTC(),
	}
	return r.users.Update(ctx, id, patch)
}

// UpdateLastLogin updates the lastLogin timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return r.users.Update(ctx, id, map[string]interface{}{"lastLogin": ts.UTC()})
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var filters []Filter
	if filter.Role != nil {
		filters = append(filters, Where("role", string(*filter.Role)))
	}

	total, err := r.users.Count(ctx, filters...)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	docs, err := r.users.Query(ctx, Query{
		Filters: filters,
		OrderBy: "email",
		Limit:   size,
		Offset:  (page - 1) * size,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, nil
}

func decodeUser(doc Document) (*models.User, error) {
	var user models.User
	if err := doc.Decode(&user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		user.ID = doc.ID
	}
	return &user, nil
}
