package activity

import "context"

// Recorder accepts write outcomes from stores.
type Recorder interface {
	Log(ctx context.Context, entry Entry)
}

// Journal is a Recorder that can be read back.
type Journal interface {
	Recorder
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}
