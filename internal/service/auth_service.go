package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medibot/internal/domain"
	"medibot/internal/email"
	"medibot/internal/repository"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrConflict        = errors.New("already registered")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidOTP      = errors.New("invalid otp")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailDelivery   = errors.New("otp email failed")
	ErrRateLimited     = errors.New("rate limited")
)

// allowedEmailDomains es la lista fija de dominios personales aceptados.
var allowedEmailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"icloud.com":  true,
}

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// AuthService coordina registro, verificacion y login de usuarios.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	otpLimiter  OTPRateLimiter
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, otpLimiter OTPRateLimiter) *AuthService {
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(10*time.Minute, 3)
	}
	return &AuthService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		otpLimiter:  otpLimiter,
	}
}

// CheckUsername responde si el nombre sigue disponible.
func (s *AuthService) CheckUsername(ctx context.Context, name string) (bool, error) {
	exists, err := s.UsernameExists(ctx, name)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// UsernameExists responde si el nombre ya pertenece a un usuario.
func (s *AuthService) UsernameExists(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrValidation
	}
	_, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CheckEmail responde si el email sigue disponible.
func (s *AuthService) CheckEmail(ctx context.Context, emailAddr string) (bool, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return false, ErrValidation
	}
	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register valida los datos, persiste el usuario sin verificar y envia el OTP
// por correo. Si el envio falla el usuario ya quedo persistido; se devuelve
// ErrEmailDelivery igualmente (comportamiento heredado, ver DESIGN.md).
func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	name := strings.TrimSpace(input.Name)
	emailAddr := normalizeEmail(input.Email)
	phone := strings.TrimSpace(input.Phone)
	password := strings.TrimSpace(input.Password)

	if name == "" || emailAddr == "" || password == "" {
		return ErrValidation
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("%w: phone number must be exactly 10 digits", ErrValidation)
	}
	if !AllowedEmailDomain(emailAddr) {
		return fmt.Errorf("%w: only valid personal email domains are allowed", ErrValidation)
	}

	if s.otpLimiter != nil && !s.otpLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	if taken, err := s.UsernameExists(ctx, name); err != nil {
		return err
	} else if taken {
		return ErrConflict
	}
	if available, err := s.CheckEmail(ctx, emailAddr); err != nil {
		return err
	} else if !available {
		return ErrConflict
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		Phone:        phone,
		PasswordHash: string(hashBytes),
		Verified:     false,
		OTP:          code,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	if s.emailSender == nil {
		return ErrEmailDelivery
	}
	if err := s.emailSender.SendVerificationOTP(ctx, emailAddr, code); err != nil {
		if s.logger != nil {
			s.logger.Warn("send verification otp failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return ErrEmailDelivery
	}

	return nil
}

// Verify compara el OTP recibido con el almacenado. Un codigo incorrecto deja
// al usuario sin verificar y conserva el codigo almacenado.
func (s *AuthService) Verify(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || code == "" {
		return domain.User{}, ErrInvalidOTP
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidOTP
		}
		return domain.User{}, err
	}

	if user.OTP == "" || subtle.ConstantTimeCompare([]byte(code), []byte(user.OTP)) != 1 {
		return domain.User{}, ErrInvalidOTP
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return domain.User{}, err
	}

	user.Verified = true
	user.OTP = ""
	return user, nil
}

// Login autentica por nombre y contraseña, distinguiendo el mensaje de error
// entre usuario inexistente y contraseña incorrecta.
func (s *AuthService) Login(ctx context.Context, name, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	password = strings.TrimSpace(password)
	if name == "" || password == "" {
		return domain.User{}, ErrValidation
	}

	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidUsername
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidPassword
	}
	return user, nil
}

// Profile devuelve nombre y email del usuario.
func (s *AuthService) Profile(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// AllowedEmailDomain valida el dominio contra la lista fija.
func AllowedEmailDomain(emailAddr string) bool {
	_, domainPart, found := strings.Cut(emailAddr, "@")
	if !found {
		return false
	}
	return allowedEmailDomains[strings.ToLower(domainPart)]
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
