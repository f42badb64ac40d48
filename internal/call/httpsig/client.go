// Package httpsig talks to the call-signaling collaborator over its
// HTTP surface. Accept and reject are fire-and-forget signals; the
// SDK's own protocol reconciles the remote party.
package httpsig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iseeyou-platform/realtime/internal/call"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client implements call.Signaler against the signaling backend.
type Client struct {
	baseURL string
	authKey string
	http    *http.Client
}

func NewClient(baseURL, authKey string) *Client {
	return &Client{
		baseURL: baseURL,
		authKey: authKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type acceptRequest struct {
	SessionID domain.CallSessionID `json:"sessionId"`
}

type rejectRequest struct {
	SessionID domain.CallSessionID `json:"sessionId"`
	Reason    call.RejectReason    `json:"reason"`
}

func (c *Client) AcceptCall(ctx context.Context, id domain.CallSessionID) error {
	return c.post(ctx, "/v1/calls/accept", acceptRequest{SessionID: id})
}

func (c *Client) RejectCall(ctx context.Context, id domain.CallSessionID, reason call.RejectReason) error {
	return c.post(ctx, "/v1/calls/reject", rejectRequest{SessionID: id, Reason: reason})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("signaling backend %s: %s", path, resp.Status)
	}
	return nil
}
