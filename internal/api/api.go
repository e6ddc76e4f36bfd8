// Package api holds the typed resource clients that sit on top of the transport pipeline.
package api

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

// Requester is the slice of the transport pipeline the resource clients use.
type Requester interface {
	Do(ctx context.Context, request transport.Request, out any) error
}

func resourcePath(collection string, id int64) string {
	return fmt.Sprintf("%s/%d", collection, id)
}
