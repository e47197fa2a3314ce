package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BucketName is the object storage bucket holding product assets.
const BucketName = "products"

const uploadTimeout = 30 * time.Second

// ObjectStore stores binary objects and returns a publicly readable URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// ObjectReader serves objects back by key. Only stores that keep the bytes
// themselves implement it.
type ObjectReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AssetURL returns the public URL of key below baseURL + "/assets/". Every
// path segment is escaped, so file names may carry spaces or '#'.
func AssetURL(baseURL, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/assets/" + strings.Join(segments, "/")
}

type gridfsStore struct {
	db      *mongo.Database
	baseURL string
}

// NewGridFSStore keeps objects in the GridFS bucket of db. Public URLs are
// rooted at baseURL + "/assets/".
func NewGridFSStore(db *mongo.Database, baseURL string) ObjectStore {
	return &gridfsStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *gridfsStore) bucket() (*gridfs.Bucket, error) {
	return gridfs.NewBucket(s.db, options.GridFSBucket().SetName(BucketName))
}

func (s *gridfsStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", err
	}
	if err := bucket.SetWriteDeadline(deadline(ctx, uploadTimeout)); err != nil {
		return "", err
	}
	if _, err := bucket.UploadFromStream(key, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return AssetURL(s.baseURL, key), nil
}

func (s *gridfsStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, err := s.bucket()
	if err != nil {
		return nil, err
	}
	if err := bucket.SetReadDeadline(deadline(ctx, uploadTimeout)); err != nil {
		return nil, err
	}
	stream, err := bucket.OpenDownloadStreamByName(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}

type cloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStore uploads objects to the Cloudinary account described by
// a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL string) (ObjectStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &cloudinaryStore{cld: cld}, nil
}

func (s *cloudinaryStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	publicID := strings.TrimSuffix(key, path.Ext(key))
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{PublicID: publicID})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", errors.New(result.Error.Message)
	}
	return result.SecureURL, nil
}
