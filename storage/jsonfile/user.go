package jsonfile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/user"
)

// usersDoc is the on-disk shape of data/users.json.
type usersDoc struct {
	Users []userRecord `json:"users"`
}

// userRecord is the persisted form of a user.User. The bcrypt hash is stored
// under "password"; the domain struct never serializes it.
type userRecord struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email,omitempty"`
	Password  string        `json:"password"`
	Role      string        `json:"role"`
	IsActive  bool          `json:"is_active"`
	Settings  user.Settings `json:"settings"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	LastLogin *time.Time    `json:"last_login,omitempty"`
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) pack(usr user.User) userRecord {
	rec := userRecord{
		ID:        usr.ID,
		Username:  usr.Username,
		Email:     usr.Email,
		Password:  string(usr.PasswordHash),
		Role:      usr.Role,
		IsActive:  usr.IsActive,
		Settings:  usr.Settings,
		CreatedAt: usr.CreatedAt.UTC(),
		UpdatedAt: usr.UpdatedAt.UTC(),
	}
	if usr.LastLogin.Valid {
		ll := usr.LastLogin.Time.UTC()
		rec.LastLogin = &ll
	}
	return rec
}

func (repo userRepository) unpack(rec userRecord) user.User {
	usr := user.User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		Role:         rec.Role,
		IsActive:     rec.IsActive,
		Settings:     rec.Settings,
		PasswordHash: []byte(rec.Password),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if rec.LastLogin != nil {
		usr.LastLogin = null.TimeFrom(*rec.LastLogin)
	}
	return usr
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.users.mu.RLock()
	defer repo.db.users.mu.RUnlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return err
	}

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, rec := range doc.Users {
		if excluded[rec.ID] {
			continue
		}
		if username != "" && rec.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && rec.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.users.mu.Lock()
	defer repo.db.users.mu.Unlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return user.User{}, err
	}

	usr.ID = uuid.New().String()
	doc.Users = append(doc.Users, repo.pack(usr))
	if err := repo.db.users.save(&doc); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.users.mu.RLock()
	defer repo.db.users.mu.RUnlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(doc.Users))
	for _, rec := range doc.Users {
		if usr := repo.unpack(rec); repo.match(usr, filter) {
			users = append(users, usr)
		}
	}
	repo.sort(users, ordering)
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.users.mu.RLock()
	defer repo.db.users.mu.RUnlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return user.User{}, err
	}

	match := func(rec userRecord) bool { return false }
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		match = func(rec userRecord) bool { return rec.ID == filter.ID }
	case filter.Username != "":
		match = func(rec userRecord) bool { return rec.Username == filter.Username }
	case filter.Email != "":
		match = func(rec userRecord) bool { return rec.Email == filter.Email }
	case filter.UsernameOrEmail != "":
		match = func(rec userRecord) bool {
			return rec.Username == filter.UsernameOrEmail || (rec.Email != "" && rec.Email == filter.UsernameOrEmail)
		}
	}

	for _, rec := range doc.Users {
		if match(rec) {
			return repo.unpack(rec), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, settings *user.Settings) (user.User, error) {
	repo.db.users.mu.Lock()
	defer repo.db.users.mu.Unlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return user.User{}, err
	}

	idx := -1
	for i, rec := range doc.Users {
		if rec.ID == usr.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return user.User{}, user.ErrNotFound
	}

	rec := &doc.Users[idx]
	if usr.Username != "" {
		rec.Username = usr.Username
	}
	if usr.Email != "" {
		rec.Email = usr.Email
	}
	if usr.Role != "" {
		rec.Role = usr.Role
	}
	if len(usr.PasswordHash) > 0 {
		rec.Password = string(usr.PasswordHash)
	}
	if usr.LastLogin.Valid {
		ll := usr.LastLogin.Time.UTC()
		rec.LastLogin = &ll
	}
	if !usr.UpdatedAt.IsZero() {
		rec.UpdatedAt = usr.UpdatedAt.UTC()
	}
	if isActive != nil {
		rec.IsActive = *isActive
	}
	if settings != nil {
		rec.Settings = *settings
	}

	if err := repo.db.users.save(&doc); err != nil {
		return user.User{}, err
	}
	return repo.unpack(*rec), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.users.mu.Lock()
	defer repo.db.users.mu.Unlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return 0, err
	}

	condemned := make(map[string]bool, len(ids))
	for _, id := range ids {
		condemned[id] = true
	}

	kept := doc.Users[:0]
	for _, rec := range doc.Users {
		if !condemned[rec.ID] {
			kept = append(kept, rec)
		}
	}
	n := len(doc.Users) - len(kept)
	if n == 0 {
		return 0, nil
	}

	doc.Users = kept
	if err := repo.db.users.save(&doc); err != nil {
		return 0, err
	}
	return n, nil
}

func (repo userRepository) CountUsers(ctx context.Context) (int, error) {
	repo.db.users.mu.RLock()
	defer repo.db.users.mu.RUnlock()

	var doc usersDoc
	if err := repo.db.users.load(&doc); err != nil {
		return 0, err
	}
	return len(doc.Users), nil
}

func (repo userRepository) match(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Username), s) &&
			!strings.Contains(strings.ToLower(usr.Email), s) {
			return false
		}
	}
	if filter.Role != "" && usr.Role != filter.Role {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo userRepository) sort(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := repo.compare(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func (repo userRepository) compare(a, b user.User, field string) int {
	cmpTime := func(x, y time.Time) int {
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	switch field {
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "last_login":
		// zero when never logged in, sorts before any login
		return cmpTime(a.LastLogin.Time, b.LastLogin.Time)
	case "updated_at":
		return cmpTime(a.UpdatedAt, b.UpdatedAt)
	default:
		return cmpTime(a.CreatedAt, b.CreatedAt)
	}
}
