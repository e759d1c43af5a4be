package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"medibot/internal/domain"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByName  map[string]string
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByName:  make(map[string]string),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.usersByID[user.ID] = user
	m.usersByName[user.Name] = user.ID
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByName(_ context.Context, name string) (domain.User, error) {
	id, ok := m.usersByName[name]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Verified = true
	user.OTP = ""
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendVerificationOTP(_ context.Context, toEmail string, code string) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Name:     "alice",
		Email:    "alice@gmail.com",
		Phone:    "5551234567",
		Password: "secret-pass",
	}
}

func TestAuthServiceRegister_Success(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sender.lastTo != "alice@gmail.com" {
		t.Fatalf("expected otp email to alice@gmail.com, got %s", sender.lastTo)
	}
	if len(sender.lastCode) != 6 {
		t.Fatalf("expected 6-digit otp, got %q", sender.lastCode)
	}

	stored, err := repo.GetByEmail(context.Background(), "alice@gmail.com")
	if err != nil {
		t.Fatalf("expected user stored, got %v", err)
	}
	if stored.Verified {
		t.Fatalf("expected user unverified after register")
	}
	if stored.OTP != sender.lastCode {
		t.Fatalf("expected stored otp to match sent code")
	}
	if stored.PasswordHash == "secret-pass" || stored.PasswordHash == "" {
		t.Fatalf("expected password to be hashed")
	}
}

func TestAuthServiceRegister_InvalidPhone(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, nil)

	input := validRegisterInput()
	input.Phone = "123-456-7890"
	err := svc.Register(context.Background(), input)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.usersByID) != 0 {
		t.Fatalf("expected no user persisted on invalid phone")
	}
}

func TestAuthServiceRegister_DisallowedEmailDomain(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, nil)

	input := validRegisterInput()
	input.Email = "alice@corp.example.com"
	err := svc.Register(context.Background(), input)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.usersByID) != 0 {
		t.Fatalf("expected no user persisted on disallowed domain")
	}
}

func TestAuthServiceRegister_Conflict(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	// Mismo nombre, email distinto.
	input := validRegisterInput()
	input.Email = "other@gmail.com"
	if err := svc.Register(context.Background(), input); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}

	// Mismo email, nombre distinto.
	input = validRegisterInput()
	input.Name = "alice2"
	if err := svc.Register(context.Background(), input); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestAuthServiceRegister_EmailSendFailure(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{err: errors.New("smtp down")}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, ErrEmailDelivery) {
		t.Fatalf("expected ErrEmailDelivery, got %v", err)
	}
	// El usuario queda persistido aunque el correo falle.
	if _, err := repo.GetByEmail(context.Background(), "alice@gmail.com"); err != nil {
		t.Fatalf("expected user persisted despite email failure, got %v", err)
	}
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

func TestAuthServiceRegister_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, &mockLimiter{allow: false})

	err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAuthServiceVerify_Success(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, err := svc.Verify(context.Background(), "alice@gmail.com", sender.lastCode)
	if err != nil {
		t.Fatalf("expected verify success, got %v", err)
	}
	if !user.Verified {
		t.Fatalf("expected returned user verified")
	}

	stored, _ := repo.GetByEmail(context.Background(), "alice@gmail.com")
	if !stored.Verified || stored.OTP != "" {
		t.Fatalf("expected stored user verified with otp cleared")
	}
}

func TestAuthServiceVerify_WrongCode(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	wrong := "000000"
	if wrong == sender.lastCode {
		wrong = "000001"
	}
	if _, err := svc.Verify(context.Background(), "alice@gmail.com", wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}

	// El codigo correcto sigue valiendo tras un intento fallido.
	stored, _ := repo.GetByEmail(context.Background(), "alice@gmail.com")
	if stored.Verified || stored.OTP != sender.lastCode {
		t.Fatalf("expected otp retained after failed attempt")
	}
	if _, err := svc.Verify(context.Background(), "alice@gmail.com", sender.lastCode); err != nil {
		t.Fatalf("expected retry with correct code to succeed, got %v", err)
	}
}

func TestAuthServiceVerify_UnknownEmail(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), newMockUserRepo(), &mockEmailSender{}, nil)

	if _, err := svc.Verify(context.Background(), "nobody@gmail.com", "123456"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP for unknown email, got %v", err)
	}
}

func TestAuthServiceLogin_Success(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := NewAuthService(zap.NewNop(), repo, sender, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, err := svc.Login(context.Background(), "alice", "secret-pass")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if user.Name != "alice" || user.Email != "alice@gmail.com" {
		t.Fatalf("unexpected user returned: %+v", user)
	}
}

func TestAuthServiceLogin_UnknownUsername(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), newMockUserRepo(), &mockEmailSender{}, nil)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	if !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestAuthServiceLogin_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, nil)

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := svc.Login(context.Background(), "alice", "wrong-pass")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAuthServiceCheckUsernameAndEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, nil)

	available, err := svc.CheckUsername(context.Background(), "alice")
	if err != nil || !available {
		t.Fatalf("expected username available, got %v %v", available, err)
	}
	available, err = svc.CheckEmail(context.Background(), "alice@gmail.com")
	if err != nil || !available {
		t.Fatalf("expected email available, got %v %v", available, err)
	}

	if err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	available, err = svc.CheckUsername(context.Background(), "alice")
	if err != nil || available {
		t.Fatalf("expected username taken, got %v %v", available, err)
	}
	available, err = svc.CheckEmail(context.Background(), "Alice@Gmail.com")
	if err != nil || available {
		t.Fatalf("expected email taken case-insensitively, got %v %v", available, err)
	}
}

func TestAuthServiceProfile(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockEmailSender{}, nil)

	user := domain.User{
		ID:        "u1",
		Name:      "alice",
		Email:     "alice@gmail.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	got, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if _, err := svc.Profile(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAllowedEmailDomain(t *testing.T) {
	cases := map[string]bool{
		"a@gmail.com":   true,
		"a@yahoo.com":   true,
		"a@outlook.com": true,
		"a@hotmail.com": true,
		"a@icloud.com":  true,
		"a@GMAIL.com":   true,
		"a@proton.me":   false,
		"not-an-email":  false,
	}
	for input, want := range cases {
		if got := AllowedEmailDomain(input); got != want {
			t.Fatalf("AllowedEmailDomain(%q) = %v, want %v", input, got, want)
		}
	}
}
