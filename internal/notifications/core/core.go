// Package core turns HealthImpacts into deliveries: the dispatcher fans an
// impact out to the enabled channels and archives it, the consumers deliver
// per channel, and the retry orchestrator maps each mail outcome to its
// follow-up outputs.
package core

import (
	"context"
	"time"

	"servicehealth/internal/config"
	"servicehealth/internal/storage"
	"servicehealth/internal/types"
)

// MailSender sends a notification with settings resolved for the current
// invocation. email.Sender implements it.
type MailSender interface {
	Send(ctx context.Context, settings config.MailSettings, n types.EmailNotification) (types.SendResult, error)
}

// BlobReader reads a blob by key. storage.S3Store and storage.MemoryStore
// implement it.
type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// htmlContentType is the content type of archived notifications and reports.
const htmlContentType = "text/html; charset=utf-8"

// archiveOutput builds the blob output archiving rendered HTML under
// prefix, zstd-encoded when compression is "zstd".
func archiveOutput(prefix, letter, html, compression string, now time.Time, id string) types.Output {
	key := storage.BlobKey(prefix, letter, now, id, "html")
	key, body := storage.Encode(compression, key, []byte(html))
	return types.BlobOutput(key, body, htmlContentType)
}
