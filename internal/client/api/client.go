package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/credisync/internal/models"
	"github.com/iudanet/credisync/pkg/api"
)

// DefaultTimeout таймаут одного вызова удаленного сервиса
const DefaultTimeout = 30 * time.Second

// Ack подтверждение сервера
type Ack struct {
	UpdatedAt time.Time
	ID        string
	Version   int64
	Replayed  bool
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	scopeID    string
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL, scopeID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		scopeID: scopeID,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Ограничиваем количество редиректов и сохраняем заголовок scope
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) > 0 && via[0].Header.Get(api.ScopeHeader) != "" {
					req.Header.Set(api.ScopeHeader, via[0].Header.Get(api.ScopeHeader))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntityGateway is the create/update/delete surface of one entity type.
type EntityGateway struct {
	client     *Client
	entityType models.EntityType
}

// Entity returns the gateway for entity type t.
func (c *Client) Entity(t models.EntityType) *EntityGateway {
	return &EntityGateway{client: c, entityType: t}
}

// Create sends a new record keyed by its client-generated id.
// Replaying the same payload is acknowledged without creating a duplicate.
func (g *EntityGateway) Create(ctx context.Context, id string, payload json.RawMessage) (*Ack, error) {
	return g.client.Create(ctx, g.entityType, id, payload)
}

// Update sends the new state of a record; baseVersion is the server version the change started from.
func (g *EntityGateway) Update(ctx context.Context, id string, payload json.RawMessage, baseVersion int64) (*Ack, error) {
	return g.client.Update(ctx, g.entityType, id, payload, baseVersion)
}

// Delete removes a record; deleting an already deleted record is acknowledged.
func (g *EntityGateway) Delete(ctx context.Context, id string) (*Ack, error) {
	return g.client.Delete(ctx, g.entityType, id)
}

// Create creates a record of type t on the server
func (c *Client) Create(ctx context.Context, t models.EntityType, id string, payload json.RawMessage) (*Ack, error) {
	var resp api.RecordResponse
	req := api.RecordRequest{ID: id, Payload: payload}
	if err := c.doRequest(ctx, http.MethodPost, recordPath(t, ""), t, id, req, &resp); err != nil {
		return nil, err
	}
	return toAck(resp), nil
}

// Update updates a record of type t on the server
func (c *Client) Update(ctx context.Context, t models.EntityType, id string, payload json.RawMessage, baseVersion int64) (*Ack, error) {
	var resp api.RecordResponse
	req := api.RecordRequest{Payload: payload, BaseVersion: baseVersion}
	if err := c.doRequest(ctx, http.MethodPut, recordPath(t, id), t, id, req, &resp); err != nil {
		return nil, err
	}
	return toAck(resp), nil
}

// Delete deletes a record of type t on the server
func (c *Client) Delete(ctx context.Context, t models.EntityType, id string) (*Ack, error) {
	var resp api.RecordResponse
	if err := c.doRequest(ctx, http.MethodDelete, recordPath(t, id), t, id, nil, &resp); err != nil {
		return nil, err
	}
	return toAck(resp), nil
}

// Fetch returns the server copy of a record
func (c *Client) Fetch(ctx context.Context, t models.EntityType, id string) (*api.RecordEnvelope, error) {
	var resp api.RecordEnvelope
	if err := c.doRequest(ctx, http.MethodGet, recordPath(t, id), t, id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks that the server answers
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", "", "", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return &TransientError{Op: "health", Err: fmt.Errorf("status %q", resp.Status)}
	}
	return nil
}

func recordPath(t models.EntityType, id string) string {
	if id == "" {
		return "/api/v1/records/" + url.PathEscape(string(t))
	}
	return "/api/v1/records/" + url.PathEscape(string(t)) + "/" + url.PathEscape(id)
}

func toAck(resp api.RecordResponse) *Ack {
	return &Ack{ID: resp.ID, Version: resp.Version, UpdatedAt: resp.UpdatedAt, Replayed: resp.Replayed}
}

// doRequest выполняет HTTP запрос и переводит ответ в типизированные ошибки
func (c *Client) doRequest(ctx context.Context, method, path string, t models.EntityType, id string, body, result any) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.scopeID != "" {
		req.Header.Set(api.ScopeHeader, c.scopeID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Сеть недоступна, таймаут или отмена: повторим позже
		return &TransientError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		var conflict api.ConflictResponse
		if err := json.Unmarshal(respBody, &conflict); err != nil {
			return &TransientError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode conflict: %w", err)}
		}
		return &ConflictError{
			EntityType:      t,
			EntityID:        id,
			RemotePayload:   conflict.Current.Payload,
			RemoteVersion:   conflict.Current.Version,
			RemoteUpdatedAt: conflict.Current.UpdatedAt,
			RemoteDeleted:   conflict.Current.Deleted,
		}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &TransientError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(respBody))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &RejectedError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func errorMessage(body []byte) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Message != "" {
			return errResp.Error + ": " + errResp.Message
		}
		return errResp.Error
	}
	return strings.TrimSpace(string(body))
}
