package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Location is a parsed s3://bucket/key uri. Key may name a single object or
// a prefix.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

func ParseURI(uri string) (Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage uri '%s': %w", uri, err)
	}
	if u.Scheme != "s3" {
		return Location{}, fmt.Errorf("invalid storage uri '%s': scheme must be s3", uri)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("invalid storage uri '%s': missing bucket", uri)
	}
	return Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
}

// DownloadPrefix copies every object under loc into dir, keeping the key
// layout relative to the prefix. It returns the number of objects copied.
func DownloadPrefix(ctx context.Context, p Provider, loc Location, dir string) (int, error) {
	prefix := loc.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objects, err := p.ListObjects(ctx, loc.Bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("error listing %s: %w", loc, err)
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("no objects found under %s", loc)
	}

	downloaded := 0
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Name, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		dest := filepath.Join(dir, filepath.FromSlash(path.Clean(rel)))
		if !strings.HasPrefix(dest, filepath.Clean(dir)+string(filepath.Separator)) {
			return 0, fmt.Errorf("object key %s escapes download directory", obj.Name)
		}

		if err := p.DownloadObject(ctx, loc.Bucket, obj.Name, dest); err != nil {
			return downloaded, err
		}
		downloaded++
	}

	slog.Info("downloaded objects", "source", loc.String(), "dir", dir, "count", downloaded)
	return downloaded, nil
}

func UploadFile(ctx context.Context, p Provider, loc Location, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("error opening %s for upload: %w", filename, err)
	}
	defer file.Close()

	return p.PutObject(ctx, loc.Bucket, loc.Key, file)
}
