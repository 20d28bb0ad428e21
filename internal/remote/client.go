// Package remote implements the HTTP client boundary for delivering queued
// journal entries and their media to the remote journal store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/models"
)

// Client is the delivery boundary the sync orchestrator talks to. A
// successful CreateEntry means the remote store has durably accepted the
// entry; anything else is a retryable failure.
type Client interface {
	// CreateEntry submits the entry payload and returns the remote identity
	// media uploads attach to.
	CreateEntry(ctx context.Context, payload *models.EntryPayload) (*RemoteEntry, error)

	// UploadMedia attaches one media item to a previously created entry.
	UploadMedia(ctx context.Context, remoteEntryID string, media *models.PendingMedia) error
}

// RemoteEntry is the remote store's record of a created entry.
type RemoteEntry struct {
	ID string `json:"id"`
}

// Config holds the remote journal API target.
type Config struct {
	BaseURL string
	Token   string
}

// HTTPClient delivers entries over the journal store's REST API.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient for the given remote target.
func NewHTTPClient(config Config) *HTTPClient {
	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateEntry POSTs the payload to the entries collection and decodes the
// assigned remote ID.
func (c *HTTPClient) CreateEntry(ctx context.Context, payload *models.EntryPayload) (*RemoteEntry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDeliveryFailed, "Failed to encode entry payload", err)
	}

	url := c.config.BaseURL + "/api/v1/entries"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDeliveryFailed, "Failed to build entry request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDeliveryFailed, "Entry delivery request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(errors.ErrDeliveryFailed,
			fmt.Sprintf("Remote store rejected entry: %s", readErrorBody(resp)))
	}

	var created RemoteEntry
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, errors.Wrap(errors.ErrDeliveryFailed, "Failed to decode entry response", err)
	}
	if created.ID == "" {
		return nil, errors.New(errors.ErrDeliveryFailed, "Remote store returned no entry ID")
	}

	logging.Debug("Entry delivered to remote store",
		map[string]interface{}{"remote_id": created.ID})
	return &created, nil
}

// UploadMedia POSTs one attachment as multipart form data to the entry's
// media collection.
func (c *HTTPClient) UploadMedia(ctx context.Context, remoteEntryID string, media *models.PendingMedia) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"caption":   media.Caption,
		"order":     strconv.Itoa(media.Order),
		"mime_type": media.MimeType,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return errors.Wrap(errors.ErrMediaUploadFailed, "Failed to write media field", err)
		}
	}

	fileName := media.OriginalFileName
	if fileName == "" {
		fileName = media.ID.String()
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return errors.Wrap(errors.ErrMediaUploadFailed, "Failed to create media part", err)
	}
	if _, err := part.Write(media.Bytes); err != nil {
		return errors.Wrap(errors.ErrMediaUploadFailed, "Failed to write media bytes", err)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(errors.ErrMediaUploadFailed, "Failed to finalize media form", err)
	}

	url := fmt.Sprintf("%s/api/v1/entries/%s/media", c.config.BaseURL, remoteEntryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return errors.Wrap(errors.ErrMediaUploadFailed, "Failed to build media request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrMediaUploadFailed, "Media upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(errors.ErrMediaUploadFailed,
			fmt.Sprintf("Remote store rejected media: %s", readErrorBody(resp)))
	}

	logging.Debug("Media uploaded to remote store",
		map[string]interface{}{
			"remote_id": remoteEntryID,
			"media_id":  media.ID.String(),
			"order":     media.Order,
		})
	return nil
}

// authorize attaches the bearer token when one is configured.
func (c *HTTPClient) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// readErrorBody summarizes a non-2xx response for error messages. The body
// is capped so a misbehaving server cannot bloat log lines.
func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s (%s)", resp.Status, bytes.TrimSpace(body))
}
