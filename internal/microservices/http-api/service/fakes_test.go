package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yamdb/internal/mail"
	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

// fakeUserRepo is an in-memory UserRepository with the same uniqueness and
// compare-and-swap semantics as the gorm one.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == strings.ToLower(user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = access.RoleUser
	}
	user.Email = strings.ToLower(user.Email)
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) find(match func(models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == strings.ToLower(email) })
}

func (r *fakeUserRepo) List(ctx context.Context, search string, page repository.Page) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(search)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "email":
			u.Email = v.(string)
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		case "bio":
			u.Bio = v.(string)
		case "role":
			u.Role = v.(access.Role)
		case "is_active":
			u.IsActive = v.(bool)
		}
	}
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SetConfirmation(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.ConfirmationCodeHash = &codeHash
	u.ConfirmationExpiresAt = &expiresAt
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) ConsumeConfirmation(ctx context.Context, id, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	now := time.Now()
	if !ok || u.ConfirmationCodeHash == nil || *u.ConfirmationCodeHash != codeHash {
		return false, nil
	}
	if u.ConfirmationExpiresAt == nil || !u.ConfirmationExpiresAt.After(now) {
		return false, nil
	}
	u.ConfirmationCodeHash = nil
	u.ConfirmationExpiresAt = nil
	u.IsActive = true
	u.LastLogin = &now
	r.users[id] = u
	return true, nil
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]models.RefreshToken{}}
}

func (r *fakeRefreshRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = *token
	return nil
}

func (r *fakeRefreshRepo) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			found := t
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRefreshRepo) Revoke(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	r.tokens[id] = t
	return true, nil
}

func (r *fakeRefreshRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// fakeReviewRepo keeps one review per (author, title) like the unique index does.
type fakeReviewRepo struct {
	mu      sync.Mutex
	nextID  int64
	reviews map[int64]models.Review
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: map[int64]models.Review{}}
}

func (r *fakeReviewRepo) CreateUnique(ctx context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.AuthorID == review.AuthorID && existing.TitleID == review.TitleID {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	review.ID = r.nextID
	review.PubDate = time.Now()
	r.reviews[review.ID] = *review
	return nil
}

func (r *fakeReviewRepo) GetByID(ctx context.Context, titleID, reviewID int64) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[reviewID]
	if !ok || review.TitleID != titleID {
		return nil, gorm.ErrRecordNotFound
	}
	return &review, nil
}

func (r *fakeReviewRepo) ListByTitle(ctx context.Context, titleID int64, page repository.Page) ([]models.Review, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Review
	for _, review := range r.reviews {
		if review.TitleID == titleID {
			out = append(out, review)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeReviewRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	return nil
}

func (r *fakeReviewRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reviews, id)
	return nil
}

// outbox records every message and fails when err is set.
type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) Send(ctx context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) Close() error { return nil }

var codeInBody = regexp.MustCompile(`code is ([A-Z0-9]+)`)

// lastCode returns the code from the most recent message.
func (o *outbox) lastCode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return ""
	}
	m := codeInBody.FindStringSubmatch(o.sent[len(o.sent)-1].Body)
	if m == nil {
		return ""
	}
	return m[1]
}

func repositoryPage() repository.Page {
	return repository.Page{Number: 1, Size: 100}
}
