// =============================================================================
// edgechat Image Uploader
// =============================================================================
// Uploads an image (local file, raw bytes or remote URL) to the Bing knowledge
// blob endpoint and returns the blob id the chat request references.
// =============================================================================

package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/edgechat/internal/tlsutil"
)

// DefaultEndpoint is the knowledge blob upload endpoint.
const DefaultEndpoint = "https://www.bing.com/images/kblob"

// BlobURLPrefix turns a blob id into the image url sent with the prompt.
const BlobURLPrefix = "https://www.bing.com/images/blob?bcid="

// Attachment describes one image to attach to a prompt. Exactly one of
// ImagePath, ImageData or ImageURL should be set.
type Attachment struct {
	ImagePath string `json:"image_path,omitempty"`
	ImageData []byte `json:"-"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Validate checks that the attachment names exactly one image source.
func (a Attachment) Validate() error {
	n := 0
	if a.ImagePath != "" {
		n++
	}
	if len(a.ImageData) > 0 {
		n++
	}
	if a.ImageURL != "" {
		n++
	}
	switch n {
	case 0:
		return errors.New("attachment has no image source")
	case 1:
		return nil
	default:
		return errors.New("attachment must set only one of image_path, image_data, image_url")
	}
}

// Config holds uploader settings.
type Config struct {
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
	// Tone is reported in convoData; defaults to "Balanced".
	Tone string
	// Header is added to every upload request (cookies, user agent).
	Header http.Header
}

// Uploader implements the image upload call over HTTP multipart.
type Uploader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an uploader. A nil client gets a hardened one from tlsutil.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Uploader {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Tone == "" {
		cfg.Tone = "Balanced"
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "image_uploader")),
	}
}

type knowledgeRequest struct {
	ImageInfo        imageInfo      `json:"imageInfo"`
	KnowledgeRequest knowledgeInner `json:"knowledgeRequest"`
}

type imageInfo struct {
	URL string `json:"url,omitempty"`
}

type knowledgeInner struct {
	InvokedSkills            []string       `json:"invokedSkills"`
	SubscriptionID           string         `json:"subscriptionId"`
	InvokedSkillsRequestData map[string]any `json:"invokedSkillsRequestData"`
	ConvoData                convoData      `json:"convoData"`
}

type convoData struct {
	ConvoID   string `json:"convoid"`
	ConvoTone string `json:"convotone"`
}

type blobResponse struct {
	BlobID          string `json:"blobId"`
	ProcessedBlobID string `json:"processedBlobId"`
}

// Upload sends the attachment and returns the blob id. An empty id with a
// nil error means the service accepted the request but returned no blob.
func (u *Uploader) Upload(ctx context.Context, att Attachment, conversationID string) (string, error) {
	if err := att.Validate(); err != nil {
		return "", err
	}

	payload := knowledgeRequest{
		ImageInfo: imageInfo{URL: att.ImageURL},
		KnowledgeRequest: knowledgeInner{
			InvokedSkills:            []string{"ImageById"},
			SubscriptionID:           "Bing.Chat.Multimodal",
			InvokedSkillsRequestData: map[string]any{"enableFaceBlur": true},
			ConvoData:                convoData{ConvoID: conversationID, ConvoTone: u.cfg.Tone},
		},
	}
	meta, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal knowledge request: %w", err)
	}

	imageB64, err := readImage(att)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("knowledgeRequest", string(meta)); err != nil {
		return "", fmt.Errorf("write knowledge request: %w", err)
	}
	if imageB64 != "" {
		if err := mw.WriteField("imageBase64", imageB64); err != nil {
			return "", fmt.Errorf("write image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range u.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var br blobResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	id := br.BlobID
	if id == "" {
		id = br.ProcessedBlobID
	}
	u.logger.Debug("image uploaded",
		zap.String("conversation_id", conversationID),
		zap.Bool("has_blob", id != ""),
		zap.Bool("by_url", att.ImageURL != ""))
	return id, nil
}

// CloseIdleConnections releases pooled connections of the owned client.
func (u *Uploader) CloseIdleConnections() {
	u.client.CloseIdleConnections()
}

// readImage returns the base64 payload; URL attachments carry none.
func readImage(att Attachment) (string, error) {
	switch {
	case len(att.ImageData) > 0:
		return base64.StdEncoding.EncodeToString(att.ImageData), nil
	case att.ImagePath != "":
		data, err := os.ReadFile(att.ImagePath)
		if err != nil {
			return "", fmt.Errorf("read image: %w", err)
		}
		return base64.StdEncoding.EncodeToString(data), nil
	default:
		return "", nil
	}
}

// BlobURL returns the image url for a blob id.
func BlobURL(blobID string) string {
	if blobID == "" {
		return ""
	}
	return BlobURLPrefix + blobID
}
