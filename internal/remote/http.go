package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/models"
)

// HTTPBackend implements Backend over the CropSync REST API.
//
// Push mapping: insert → POST /v1/{table}, update → PUT /v1/{table}/{id},
// delete → DELETE /v1/{table}/{id}. Every push carries the record's local id
// in the Idempotency-Key header.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	token   TokenProvider
}

// NewHTTPBackend builds a backend rooted at baseURL. The client's Timeout
// bounds each request; pass a client configured from Config.RequestTimeout.
// token may be nil for unauthenticated backends.
func NewHTTPBackend(baseURL string, client *http.Client, token TokenProvider) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		token:   token,
	}
}

func (b *HTTPBackend) Ping(ctx context.Context) error {
	resp, err := b.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode)
	}
	return nil
}

// pushResponse is the body returned by successful mutating calls.
type pushResponse struct {
	ServerID string `json:"server_id"`
}

func (b *HTTPBackend) Push(ctx context.Context, table string, op models.Operation, localID string, payload []byte) (string, error) {
	var method, path string
	switch op {
	case models.OperationInsert:
		method, path = http.MethodPost, "/v1/"+table
	case models.OperationUpdate:
		method, path = http.MethodPut, "/v1/"+table+"/"+url.PathEscape(localID)
	case models.OperationDelete:
		method, path = http.MethodDelete, "/v1/"+table+"/"+url.PathEscape(localID)
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}

	headers := map[string]string{"Idempotency-Key": localID}

	var body io.Reader
	if op != models.OperationDelete {
		headers["Content-Type"] = "application/json"
		body = bytes.NewReader(payload)
	}

	resp, err := b.do(ctx, method, path, body, headers)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated:
		var pr pushResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return "", fmt.Errorf("failed to decode push response: %w", err)
		}
		return pr.ServerID, nil
	case resp.StatusCode == http.StatusNoContent:
		// Deletes may come back bodiless.
		return "", nil
	default:
		return "", classifyStatus(resp.StatusCode)
	}
}

func (b *HTTPBackend) PullTips(ctx context.Context, limit, offset int) ([]models.Tip, error) {
	path := "/v1/tips"
	if limit > 0 || offset > 0 {
		q := url.Values{}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		if offset > 0 {
			q.Set("offset", strconv.Itoa(offset))
		}
		path += "?" + q.Encode()
	}

	var tips []models.Tip
	if err := b.getJSON(ctx, path, &tips); err != nil {
		return nil, err
	}
	return tips, nil
}

func (b *HTTPBackend) PullNotifications(ctx context.Context, userLocalID string) ([]models.Notification, error) {
	path := "/v1/users/" + url.PathEscape(userLocalID) + "/notifications"

	var out []models.Notification
	if err := b.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *HTTPBackend) getJSON(ctx context.Context, path string, dst any) error {
	resp, err := b.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if b.token != nil {
		token, err := b.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	return resp, nil
}

// classifyStatus maps an HTTP status to one of the two remote sentinels.
// 408, 429 and every 5xx are worth retrying soon; any other non-2xx is a
// rejection.
func classifyStatus(code int) error {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500 {
		return fmt.Errorf("%w: status %d", common.ErrRemoteTransient, code)
	}
	return fmt.Errorf("%w: status %d", common.ErrRemoteRejected, code)
}

// classifyTransportErr maps transport-level failures. Caller-initiated
// cancellation passes through untouched so the engine can distinguish a
// stopped pass from a flaky network.
func classifyTransportErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrRemoteTransient, err)
}

// drain consumes and closes the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
