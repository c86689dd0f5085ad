package service

import "context"

// AvatarStorage stores avatar images and exposes them by URL.
type AvatarStorage interface {
	// Upload writes data under key, overwriting any previous object, and returns its public URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}
