package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vaultx/internal/domain"
)

// TokenSource supplies bearer tokens for blob calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// BlobClient is the opaque blob store. It moves bytes and never inspects
// them.
type BlobClient struct {
	t      *transport
	tokens TokenSource
}

func NewBlobClient(baseURL string, tokens TokenSource, opts ...Option) (*BlobClient, error) {
	t, err := newTransport(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &BlobClient{t: t, tokens: tokens}, nil
}

func (c *BlobClient) Put(ctx context.Context, path string, data []byte) error {
	endpoint, err := blobEndpoint(path)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return storageError("put", err)
	}

	resp, err := c.t.send(ctx, http.MethodPut, endpoint, token, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return storageError("put", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *BlobClient) Get(ctx context.Context, path string) ([]byte, error) {
	endpoint, err := blobEndpoint(path)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, storageError("get", err)
	}

	resp, err := c.t.send(ctx, http.MethodGet, endpoint, token, "", nil)
	if err != nil {
		return nil, storageError("get", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.t.maxBlobSize+1))
	if err != nil {
		return nil, storageError("get", fmt.Errorf("failed to read blob: %w", err))
	}
	if int64(len(data)) > c.t.maxBlobSize {
		return nil, &StorageError{Op: "get", Err: ErrBlobTooLarge}
	}
	return data, nil
}

func (c *BlobClient) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	for _, p := range paths {
		if _, err := blobEndpoint(p); err != nil {
			return &StorageError{Op: "delete", Err: err}
		}
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return storageError("delete", err)
	}

	for start := 0; start < len(paths); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(paths))

		var result domain.DeleteBlobsResponse
		req := &domain.DeleteBlobsRequest{Paths: paths[start:end]}
		if err := c.t.doJSON(ctx, http.MethodPost, "/blobs/delete", token, req, &result); err != nil {
			return storageError("delete", err)
		}
	}
	return nil
}

// maxDeleteBatch matches the server's per-request path limit.
const maxDeleteBatch = 256

// blobEndpoint maps user/shard to its API path.
func blobEndpoint(path string) (string, error) {
	userID, shardID, ok := strings.Cut(path, "/")
	if !ok || userID == "" || shardID == "" || strings.Contains(shardID, "/") {
		return "", ErrInvalidPath
	}
	return "/blobs/" + url.PathEscape(userID) + "/" + url.PathEscape(shardID), nil
}
