package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medibot/internal/domain"
)

// APIClient habla con el backend REST de MediBot.
type APIClient struct {
	baseURL string
	client  *http.Client
	token   string
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken fija el access token para las rutas protegidas.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

// Tokens es el par de tokens emitido por el backend.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResult es la respuesta de verify y login.
type AuthResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Tokens Tokens `json:"tokens"`
}

// APIError conserva el status y el mensaje de error del backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: status=%d", e.Status)
}

func (c *APIClient) CheckUsername(ctx context.Context, name string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/check-username", map[string]string{"name": name}, &out)
	return out.Available, err
}

func (c *APIClient) UsernameExists(ctx context.Context, name string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/username-exists", map[string]string{"name": name}, &out)
	return out.Exists, err
}

func (c *APIClient) CheckEmail(ctx context.Context, email string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/check-email", map[string]string{"email": email}, &out)
	return out.Available, err
}

func (c *APIClient) Register(ctx context.Context, name, email, phone, password string) error {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"phone":    phone,
		"password": password,
	}
	return c.do(ctx, http.MethodPost, "/api/auth/register", body, nil)
}

func (c *APIClient) Verify(ctx context.Context, email, otp string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/verify", map[string]string{"email": email, "otp": otp}, &out)
	return out, err
}

func (c *APIClient) Login(ctx context.Context, name, password string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"name": name, "password": password}, &out)
	return out, err
}

func (c *APIClient) Profile(ctx context.Context, userID string) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, http.MethodGet, "/api/auth/profile/"+userID, nil, &out)
	return out, err
}

func (c *APIClient) StartSession(ctx context.Context, userID, title string) (domain.Session, error) {
	var out domain.Session
	body := map[string]string{"userId": userID, "title": title}
	err := c.do(ctx, http.MethodPost, "/api/chat/startSession", body, &out)
	return out, err
}

func (c *APIClient) SaveMessage(ctx context.Context, userID, sessionID, message, sender string) error {
	body := map[string]string{
		"userId":    userID,
		"sessionId": sessionID,
		"message":   message,
		"sender":    sender,
	}
	return c.do(ctx, http.MethodPost, "/api/chat/save", body, nil)
}

func (c *APIClient) RenameSession(ctx context.Context, sessionID, title string) (domain.Session, error) {
	var out domain.Session
	err := c.do(ctx, http.MethodPut, "/api/chat/session/"+sessionID, map[string]string{"title": title}, &out)
	return out, err
}

func (c *APIClient) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	var out []domain.Session
	err := c.do(ctx, http.MethodGet, "/api/chat/sessions/user/"+userID, nil, &out)
	return out, err
}

func (c *APIClient) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/chat/messages/"+sessionID, nil, &out)
	return out, err
}

func (c *APIClient) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/session/"+sessionID, nil, nil)
}

func (c *APIClient) History(ctx context.Context, userID string) ([]domain.Message, error) {
	var out []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/chat/history/"+userID, nil, &out)
	return out, err
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errBody)
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
