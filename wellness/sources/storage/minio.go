package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"wellness/wellness/config"
	"wellness/wellness/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the subset of object storage the services need.
type ObjectStore interface {
	Bucket() string
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get reads at most limit bytes; limit <= 0 reads everything.
	Get(ctx context.Context, key string, limit int64) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// RemovePrefix deletes every object under prefix and returns how many went.
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// ObjectEvent is one ObjectCreated notification.
type ObjectEvent struct {
	Key  string
	Size int64
}

type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
		logging.AppLogger.Info("created bucket", zap.String("bucket", cfg.MinIOBucket))
	}
	return &MinIOClient{client: client, bucket: cfg.MinIOBucket}, nil
}

func (m *MinIOClient) Bucket() string {
	return m.bucket
}

func (m *MinIOClient) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *MinIOClient) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *MinIOClient) Get(ctx context.Context, key string, limit int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if limit > 0 {
		if err := opts.SetRange(0, limit-1); err != nil {
			return nil, err
		}
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, opts)
	if err != nil {
		return nil, mapErr(err)
	}
	defer obj.Close()

	var r io.Reader = obj
	if limit > 0 {
		r = io.LimitReader(obj, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

func (m *MinIOClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if errors.Is(mapErr(err), ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *MinIOClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return keys, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *MinIOClient) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	return removePrefix(ctx, m.client, m.bucket, prefix)
}

// bulkRemover is the part of *minio.Client that RemovePrefix drives.
type bulkRemover interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucket string, objects <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

func removePrefix(ctx context.Context, c bulkRemover, bucket, prefix string) (int, error) {
	var listed atomic.Int64
	objects := c.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	failed := 0
	var firstErr error
	for rerr := range c.RemoveObjects(ctx, bucket, countObjects(ctx, objects, &listed), minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = rerr.Err
		}
		failed++
	}
	return int(listed.Load()) - failed, firstErr
}

// countObjects passes objects through while counting them.
func countObjects(ctx context.Context, in <-chan minio.ObjectInfo, n *atomic.Int64) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo)
	go func() {
		defer close(out)
		for obj := range in {
			if obj.Err != nil {
				logging.ErrorLogger.Error("list objects failed", zap.Error(obj.Err))
				continue
			}
			select {
			case out <- obj:
				n.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Listen streams ObjectCreated events under prefix until ctx ends or the
// connection drops. The returned channel is closed in both cases.
func (m *MinIOClient) Listen(ctx context.Context, prefix string) <-chan ObjectEvent {
	out := make(chan ObjectEvent)
	go func() {
		defer close(out)
		for info := range m.client.ListenBucketNotification(ctx, m.bucket, prefix, "", []string{"s3:ObjectCreated:*"}) {
			if info.Err != nil {
				logging.ErrorLogger.Error("bucket notification error", zap.Error(info.Err))
				return
			}
			for _, rec := range info.Records {
				key, err := url.QueryUnescape(rec.S3.Object.Key)
				if err != nil {
					key = rec.S3.Object.Key
				}
				select {
				case out <- ObjectEvent{Key: key, Size: rec.S3.Object.Size}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func mapErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

// ScrapeObject is a cached rendering of a web page.
type ScrapeObject struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"extracted_text"`
	Links     []string  `json:"links,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScrapeKey hashes the URL so any URL maps to a safe object name.
func ScrapeKey(rawURL string) string {
	return path.Join("scrapes", fmt.Sprintf("%x.json", md5.Sum([]byte(rawURL))))
}

func PutScrape(ctx context.Context, store ObjectStore, obj ScrapeObject) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	key := ScrapeKey(obj.URL)
	if err := store.Put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// GetScrape returns the cached scrape when it is younger than maxAge, nil otherwise.
func GetScrape(ctx context.Context, store ObjectStore, rawURL string, maxAge time.Duration) (*ScrapeObject, error) {
	data, err := store.Get(ctx, ScrapeKey(rawURL), 0)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var obj ScrapeObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if time.Since(obj.Timestamp) > maxAge {
		return nil, nil
	}
	return &obj, nil
}
