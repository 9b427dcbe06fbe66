package smtp

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/lp24213/mailbridge/internal/models"
)

// resolvedAttachment is an outbound attachment with its content materialized,
// ready to hand to the message builder.
type resolvedAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

// resolveAttachments materializes every attachment source into bytes.
// Attachments with a nil or empty source are dropped rather than sent as
// zero-byte parts. A source that exists but cannot be read fails the send.
func resolveAttachments(attachments []models.OutboundAttachment) ([]resolvedAttachment, error) {
	resolved := make([]resolvedAttachment, 0, len(attachments))

	for _, att := range attachments {
		content, err := resolveSource(att.Source)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", att.Filename, err)
		}
		if len(content) == 0 {
			continue
		}

		filename := att.Filename
		if filename == "" {
			filename = "attachment"
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		resolved = append(resolved, resolvedAttachment{
			Filename:    filename,
			ContentType: contentType,
			ContentID:   att.ContentID,
			Content:     content,
		})
	}

	return resolved, nil
}

func resolveSource(source models.AttachmentSource) ([]byte, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case models.BytesSource:
		return []byte(src), nil
	case models.Base64Source:
		if src == "" {
			return nil, nil
		}
		content, err := base64.StdEncoding.DecodeString(string(src))
		if err != nil {
			return nil, fmt.Errorf("decode base64 content: %w", err)
		}
		return content, nil
	case models.FilePathSource:
		if src == "" {
			return nil, nil
		}
		content, err := os.ReadFile(string(src))
		if err != nil {
			return nil, fmt.Errorf("read attachment file: %w", err)
		}
		return content, nil
	case models.ReaderSource:
		if src.Reader == nil {
			return nil, nil
		}
		content, err := io.ReadAll(src.Reader)
		if err != nil {
			return nil, fmt.Errorf("read attachment stream: %w", err)
		}
		return content, nil
	default:
		return nil, fmt.Errorf("unsupported attachment source %T", source)
	}
}
