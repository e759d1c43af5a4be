package client

import (
	"context"
	"regexp"
	"strings"

	"medibot/internal/service"
)

// State identifica el paso actual del onboarding conversacional.
type State int

const (
	StateIdle State = iota
	StateSignupName
	StateSignupEmail
	StateSignupPhone
	StateSignupPassword
	StateSignupOTP
	StateLoginName
	StateLoginPassword
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSignupName:
		return "signup_name"
	case StateSignupEmail:
		return "signup_email"
	case StateSignupPhone:
		return "signup_phone"
	case StateSignupPassword:
		return "signup_password"
	case StateSignupOTP:
		return "signup_otp"
	case StateLoginName:
		return "login_name"
	case StateLoginPassword:
		return "login_password"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Secret reporta si la entrada del paso actual no debe mostrarse en pantalla.
func (s State) Secret() bool {
	return s == StateSignupPassword || s == StateLoginPassword
}

var clientPhonePattern = regexp.MustCompile(`^\d{10}$`)

// FlowAPI es el subconjunto del backend que necesita el onboarding.
type FlowAPI interface {
	CheckUsername(ctx context.Context, name string) (bool, error)
	CheckEmail(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, name string) (bool, error)
	Register(ctx context.Context, name, email, phone, password string) error
	Verify(ctx context.Context, email, otp string) (AuthResult, error)
	Login(ctx context.Context, name, password string) (AuthResult, error)
}

// Flow es la maquina de estados del onboarding. Cada Submit consume una
// entrada del usuario y devuelve las lineas que el bot responde. Los fallos
// de red o de validacion se devuelven como respuestas del bot y el estado se
// conserva para que el usuario reintente.
type Flow struct {
	api   FlowAPI
	state State

	signupName     string
	signupEmail    string
	signupPhone    string
	signupPassword string
	loginName      string

	userID string
	name   string
	email  string
	tokens Tokens
}

func NewFlow(api FlowAPI) *Flow {
	return &Flow{api: api, state: StateIdle}
}

func (f *Flow) State() State         { return f.state }
func (f *Flow) Authenticated() bool  { return f.state == StateAuthenticated }
func (f *Flow) UserID() string       { return f.userID }
func (f *Flow) Name() string         { return f.name }
func (f *Flow) Email() string        { return f.email }
func (f *Flow) AccessTokens() Tokens { return f.tokens }

// Greeting devuelve las lineas iniciales antes de cualquier entrada.
func (f *Flow) Greeting() []string {
	return []string{
		"👋 Welcome to MediBot!",
		"Type `signup` to create an account or `login` to sign in.",
	}
}

// Logout descarta la identidad actual y vuelve al estado inicial.
func (f *Flow) Logout() {
	*f = Flow{api: f.api, state: StateIdle}
}

// Submit procesa una entrada del usuario y avanza la maquina de estados.
func (f *Flow) Submit(ctx context.Context, input string) []string {
	input = strings.TrimSpace(input)

	switch f.state {
	case StateIdle:
		return f.handleIdle(input)
	case StateSignupName:
		return f.handleSignupName(ctx, input)
	case StateSignupEmail:
		return f.handleSignupEmail(ctx, input)
	case StateSignupPhone:
		return f.handleSignupPhone(input)
	case StateSignupPassword:
		return f.handleSignupPassword(ctx, input)
	case StateSignupOTP:
		return f.handleSignupOTP(ctx, input)
	case StateLoginName:
		return f.handleLoginName(ctx, input)
	case StateLoginPassword:
		return f.handleLoginPassword(ctx, input)
	default:
		return nil
	}
}

func (f *Flow) handleIdle(input string) []string {
	switch strings.ToLower(input) {
	case "signup":
		f.state = StateSignupName
		return []string{"Create a unique username:"}
	case "login":
		f.state = StateLoginName
		return []string{"Enter your username:"}
	default:
		return []string{"❗ Please type `signup` to create an account or `login` to sign in."}
	}
}

func (f *Flow) handleSignupName(ctx context.Context, input string) []string {
	if input == "" {
		return []string{"❗ Username cannot be empty. Create a unique username:"}
	}
	available, err := f.api.CheckUsername(ctx, input)
	if err != nil {
		return []string{"⚠️ Error checking username. Try again."}
	}
	if !available {
		return []string{"❌ Username taken. Please try another one."}
	}
	f.signupName = input
	f.state = StateSignupEmail
	return []string{"Enter your email:"}
}

func (f *Flow) handleSignupEmail(ctx context.Context, input string) []string {
	if !service.AllowedEmailDomain(strings.ToLower(input)) {
		return []string{"❌ Only common email domains allowed. Try a valid email (e.g., Gmail, Outlook, Yahoo)."}
	}
	available, err := f.api.CheckEmail(ctx, input)
	if err != nil {
		return []string{"⚠️ Error checking email. Try again."}
	}
	if !available {
		return []string{"❌ Email already in use. Try another one."}
	}
	f.signupEmail = strings.ToLower(input)
	f.state = StateSignupPhone
	return []string{"Enter your phone number:"}
}

func (f *Flow) handleSignupPhone(input string) []string {
	if !clientPhonePattern.MatchString(input) {
		return []string{"❌ Invalid phone number. Please enter a 10-digit number."}
	}
	f.signupPhone = input
	f.state = StateSignupPassword
	return []string{"Create a password:"}
}

func (f *Flow) handleSignupPassword(ctx context.Context, input string) []string {
	if input == "" {
		return []string{"❗ Password cannot be empty. Create a password:"}
	}
	f.signupPassword = input
	f.state = StateSignupOTP

	replies := []string{"📧 Sending OTP to your email..."}
	if err := f.api.Register(ctx, f.signupName, f.signupEmail, f.signupPhone, f.signupPassword); err != nil {
		replies = append(replies, "⚠️ Could not send the OTP: "+err.Error())
	}
	replies = append(replies, "Enter OTP to verify:")
	return replies
}

func (f *Flow) handleSignupOTP(ctx context.Context, input string) []string {
	result, err := f.api.Verify(ctx, f.signupEmail, input)
	if err != nil {
		return []string{"❌ Invalid OTP. Please try again."}
	}
	f.becomeAuthenticated(result, f.signupName, f.signupEmail)
	return []string{"✅ Verified successfully! You can start chatting now."}
}

func (f *Flow) handleLoginName(ctx context.Context, input string) []string {
	if input == "" {
		return []string{"❗ Username cannot be empty. Enter your username:"}
	}
	exists, err := f.api.UsernameExists(ctx, input)
	if err != nil {
		return []string{"⚠️ Error checking username. Try again."}
	}
	if !exists {
		return []string{"❌ Invalid username."}
	}
	f.loginName = input
	f.state = StateLoginPassword
	return []string{"Enter your password:"}
}

func (f *Flow) handleLoginPassword(ctx context.Context, input string) []string {
	result, err := f.api.Login(ctx, f.loginName, input)
	if err != nil {
		return []string{"❌ Invalid credentials. Enter your password:"}
	}
	f.becomeAuthenticated(result, result.Name, result.Email)
	return []string{"🔐 Login successful! Start chatting."}
}

func (f *Flow) becomeAuthenticated(result AuthResult, name, email string) {
	f.state = StateAuthenticated
	f.userID = result.UserID
	f.name = name
	f.email = email
	f.tokens = result.Tokens
	f.signupPassword = ""
}
