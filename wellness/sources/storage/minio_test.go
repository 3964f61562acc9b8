package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket lists keys and removes them from separate goroutines, the way
// minio-go does.
type fakeBucket struct {
	keys    []string
	listErr error
}

func (f *fakeBucket) ListObjects(ctx context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	out := make(chan minio.ObjectInfo)
	go func() {
		defer close(out)
		for _, k := range f.keys {
			if strings.HasPrefix(k, opts.Prefix) {
				out <- minio.ObjectInfo{Key: k}
			}
		}
		if f.listErr != nil {
			out <- minio.ObjectInfo{Err: f.listErr}
		}
	}()
	return out
}

func (f *fakeBucket) RemoveObjects(ctx context.Context, _ string, objects <-chan minio.ObjectInfo, _ minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	errs := make(chan minio.RemoveObjectError)
	go func() {
		defer close(errs)
		for obj := range objects {
			if strings.HasSuffix(obj.Key, ".locked") {
				errs <- minio.RemoveObjectError{ObjectName: obj.Key, Err: errors.New("access denied")}
			}
		}
	}()
	return errs
}

func TestRemovePrefix_Counts(t *testing.T) {
	var keys []string
	for i := 0; i < 200; i++ {
		keys = append(keys, fmt.Sprintf("users/u1/%03d.txt", i))
	}
	keys = append(keys, "users/u1/held.locked", "users/u2/other.txt")

	tests := []struct {
		name    string
		bucket  *fakeBucket
		want    int
		wantErr bool
	}{
		{"all removed", &fakeBucket{keys: keys[:200]}, 200, false},
		{"one refused", &fakeBucket{keys: keys}, 200, true},
		{"listing error skipped", &fakeBucket{keys: keys[:10], listErr: errors.New("list broke")}, 10, false},
		{"nothing under prefix", &fakeBucket{keys: []string{"users/u2/other.txt"}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := removePrefix(context.Background(), tt.bucket, "b", "users/u1/")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, n)
		})
	}
}
