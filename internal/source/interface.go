package source

import "context"

// ImageItem is one reference photo of an enrolled identity.
type ImageItem struct {
	Seq      int    // position in the full ordered listing
	Identity string // folder name
	Name     string // file name within the folder
	Path     string // absolute or root-relative file path
}

// Source lists reference images in a stable order.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchBatch fetches a batch of image items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of image items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []ImageItem, nextCursor string, err error)
}
