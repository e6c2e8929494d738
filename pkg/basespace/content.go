package basespace

import (
	"context"
	"fmt"

	bserrors "github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/locator"
)

var (
	ErrNoContentURL      = bserrors.New("unable to get content URL")
	ErrRangeNotSupported = bserrors.ErrRangeNotSupported
)

// ContentMetaGetter is the part of Client a content refresher needs.
type ContentMetaGetter interface {
	GetFileContentMeta(ctx context.Context, id string) (*ContentMeta, error)
}

// ContentRefresher returns a locator.Refresher that asks the API for a new
// pre-signed content URL of fileID.
func ContentRefresher(client ContentMetaGetter, fileID string) locator.Refresher {
	return locator.RefresherFunc(func(ctx context.Context) (locator.Locator, error) {
		meta, err := client.GetFileContentMeta(ctx, fileID)
		if err != nil {
			return locator.Locator{}, err
		}

		if meta == nil || meta.HrefContent == "" {
			return locator.Locator{}, fmt.Errorf("%w: file %s", ErrNoContentURL, fileID)
		}

		if !meta.SupportsRange {
			return locator.Locator{}, fmt.Errorf("%w: file %s", ErrRangeNotSupported, fileID)
		}

		return locator.Locator{URL: meta.HrefContent, ExpiresAt: meta.Expires}, nil
	})
}
