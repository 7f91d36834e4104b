package auth

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storepos-backend/pkg/auth"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storepos", ExpirationMinutes: 30}

type stubUserRepo struct {
	user        *models.User
	lastLoginID int64
	lastLoginAt time.Time
}

func (s *stubUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.user
	return &clone, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	s.lastLoginID = id
	s.lastLoginAt = at
	return nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubUserRepo) {
	t.Helper()
	repo := &stubUserRepo{user: user}
	svc, err := NewService(ServiceParams{UserRepo: repo, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo
}

func TestServiceLoginMintsRoleToken(t *testing.T) {
	user := &models.User{
		ID:           7,
		Username:     "casey",
		PasswordHash: mustHashPassword(t, "till-secret"),
		FullName:     "Casey Cashier",
		Role:         enums.UserRoleCashier,
		IsActive:     true,
	}
	svc, repo := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: " Casey ", Password: "till-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != 7 || claims.Role != enums.UserRoleCashier || claims.Username != "casey" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if repo.lastLoginID != 7 || repo.lastLoginAt.IsZero() {
		t.Fatalf("expected last login to be stamped")
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected user with last login in response")
	}
	if !resp.ExpiresAt.After(repo.lastLoginAt) {
		t.Fatalf("expected expiry after login time")
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{
		ID:           7,
		Username:     "casey",
		PasswordHash: mustHashPassword(t, "till-secret"),
		Role:         enums.UserRoleCashier,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)

	for _, req := range []LoginRequest{
		{Username: "casey", Password: "wrong"},
		{Username: "nobody", Password: "till-secret"},
		{Username: "", Password: "till-secret"},
		{Username: "casey", Password: ""},
	} {
		_, err := svc.Login(context.Background(), req)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	user := &models.User{
		ID:           9,
		Username:     "former",
		PasswordHash: mustHashPassword(t, "till-secret"),
		Role:         enums.UserRoleCashier,
		IsActive:     false,
	}
	svc, repo := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "former", Password: "till-secret"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if repo.lastLoginID != 0 {
		t.Fatalf("inactive login must not stamp last login")
	}
}
