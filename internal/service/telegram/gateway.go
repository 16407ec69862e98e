package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"SigRelay/internal/domain/models"
	xhttp "SigRelay/pkg/http"
)

// Gateway talks to the MTProto gateway sidecar over HTTP. The sidecar owns
// the long-lived platform session; this client maps its responses onto the
// domain auth errors.
type Gateway struct {
	baseURL string
	client  *xhttp.Client
}

// NewGateway creates a gateway client.
func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type gatewayError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type submitCodeResponse struct {
	Result string `json:"result"`
}

// RequestCode asks the platform to send a login code to phone.
func (g *Gateway) RequestCode(ctx context.Context, phone string) error {
	return g.post(ctx, "/auth/request_code", map[string]string{"phone": phone}, nil)
}

// SubmitCode submits the login code. A second factor may still be required.
func (g *Gateway) SubmitCode(ctx context.Context, code string) (models.CodeResult, error) {
	var resp submitCodeResponse
	if err := g.post(ctx, "/auth/submit_code", map[string]string{"code": code}, &resp); err != nil {
		return "", err
	}
	if resp.Result == string(models.CodeNeedsPassword) {
		return models.CodeNeedsPassword, nil
	}
	return models.CodeAccepted, nil
}

// SubmitPassword submits the 2FA password.
func (g *Gateway) SubmitPassword(ctx context.Context, password string) error {
	return g.post(ctx, "/auth/submit_password", map[string]string{"password": password}, nil)
}

// Logout terminates the platform session.
func (g *Gateway) Logout(ctx context.Context) error {
	return g.post(ctx, "/auth/logout", nil, nil)
}

type sessionResponse struct {
	Session string `json:"session"`
}

// ExportSession returns the sidecar's serialized platform session.
func (g *Gateway) ExportSession(ctx context.Context) (string, error) {
	var resp sessionResponse
	if err := g.post(ctx, "/auth/export_session", nil, &resp); err != nil {
		return "", err
	}
	return resp.Session, nil
}

// RestoreSession replays a previously exported session into the sidecar.
func (g *Gateway) RestoreSession(ctx context.Context, session string) error {
	return g.post(ctx, "/auth/restore_session", map[string]string{"session": session}, nil)
}

func (g *Gateway) post(ctx context.Context, path string, body, dest interface{}) error {
	resp, err := g.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    g.baseURL + path,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if dest == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("gateway %s: decode: %w", path, err)
		}
		return nil
	}

	b, _ := io.ReadAll(resp.Body)
	var ge gatewayError
	_ = json.Unmarshal(b, &ge)
	if err := mapGatewayError(resp.StatusCode, ge.Error); err != nil {
		return err
	}
	return fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, b)
}

func mapGatewayError(status int, code string) error {
	switch code {
	case "invalid_phone":
		return models.ErrInvalidPhone
	case "invalid_code":
		return models.ErrInvalidCode
	case "invalid_password":
		return models.ErrInvalidPassword
	case "rate_limited":
		return models.ErrRateLimited
	case "not_authenticated":
		return models.ErrNotAuthenticated
	}
	if status == http.StatusTooManyRequests {
		return models.ErrRateLimited
	}
	return nil
}
