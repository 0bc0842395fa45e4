package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smart-apply/internal/domain/user"
)

type fakeUserRepo struct {
	byID      map[uuid.UUID]user.User
	byEmail   map[string]user.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[uuid.UUID]user.User),
		byEmail: make(map[string]user.User),
	}
}

func (f *fakeUserRepo) Create(_ context.Context, u user.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeUserRepo) ReplaceCV(_ context.Context, id uuid.UUID, cvText, cvFilename string) error {
	u, ok := f.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.CVText = cvText
	u.CVFilename = cvFilename
	f.byID[id] = u
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserRepo) ListWithCV(_ context.Context, _, _ int) ([]user.User, error) {
	out := make([]user.User, 0)
	for _, u := range f.byID {
		if u.CVText != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterInput{
		Name:     "Chanda Mwila",
		Email:    "  Chanda@Example.com ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.Email != "chanda@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.PasswordHash != "" {
		t.Fatal("password hash leaked in returned user")
	}

	stored := repo.byEmail["chanda@example.com"]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	got, err := svc.Login(ctx, LoginInput{Email: "chanda@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("login returned user %s, want %s", got.ID, created.ID)
	}
	if got.PasswordHash != "" {
		t.Fatal("password hash leaked on login")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	in := RegisterInput{Name: "Chanda", Email: "chanda@example.com", Password: "correct horse"}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Chanda",
		Email:    "chanda@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "Chanda", Email: "chanda@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "chanda@example.com", Password: "wrong horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewService(newFakeUserRepo())
	_, err := svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}
