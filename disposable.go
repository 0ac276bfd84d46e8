package servicebridge

import "context"

// Disposable is implemented by resources that need cleanup, including
// containers themselves.
//
// Example:
//
//	c, err := digbridge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful shutdown.
// Interceptors resolved by a container may implement it; backends call it
// with a bounded context when the container is closed.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}
