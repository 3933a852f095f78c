package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/api/http/converter"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
)

// API reads and writes the room record and chat log through the relay's REST endpoints.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, client *http.Client) *API {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

func (a *API) roomPath(roomID string, suffix string) string {
	return a.baseURL + "/api/rooms/" + url.PathEscape(roomID) + suffix
}

func (a *API) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var out struct {
		Room converter.RoomResponse `json:"room"`
	}
	if err := a.call(ctx, http.MethodGet, a.roomPath(roomID, ""), nil, &out); err != nil {
		return nil, err
	}
	return converter.RoomFromApi(&out.Room), nil
}

func (a *API) SetRoomLocked(ctx context.Context, roomID string, locked bool, adminID string) (*domain.Room, error) {
	body := map[string]any{"locked": locked, "admin_id": adminID}
	var out struct {
		Room converter.RoomResponse `json:"room"`
	}
	if err := a.call(ctx, http.MethodPut, a.roomPath(roomID, "/lock"), body, &out); err != nil {
		return nil, err
	}
	return converter.RoomFromApi(&out.Room), nil
}

func (a *API) PostMessage(ctx context.Context, roomID string, sender domain.Presence, content string) (*domain.ChatMessage, error) {
	body := map[string]any{
		"sender_id": sender.UserID,
		"nickname":  sender.Nickname,
		"content":   content,
	}
	var out struct {
		Message converter.ChatMessageResponse `json:"message"`
	}
	if err := a.call(ctx, http.MethodPost, a.roomPath(roomID, "/messages"), body, &out); err != nil {
		return nil, err
	}
	return converter.ChatMessageFromApi(out.Message), nil
}

func (a *API) History(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	endpoint := a.roomPath(roomID, "/messages")
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Messages []converter.ChatMessageResponse `json:"messages"`
	}
	if err := a.call(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	messages := make([]*domain.ChatMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, converter.ChatMessageFromApi(m))
	}
	return messages, nil
}

func (a *API) call(ctx context.Context, method string, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if resp.StatusCode == http.StatusNotFound && method == http.MethodGet && !strings.HasSuffix(endpoint, "/messages") {
			return fmt.Errorf("%w: %s", repository.ErrRoomNotFound, failure.Error)
		}
		return &StatusError{Status: resp.StatusCode, Message: failure.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
