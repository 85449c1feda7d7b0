package testutil

import (
	"context"
	"net/http"

	id "movetrack/pkg/domain"
	"movetrack/pkg/requestcontext"
)

// WithSupplier simulates what the supplier auth middleware does for an
// authenticated request.
func WithSupplier(req *http.Request, supplierID id.SupplierID, subject string) *http.Request {
	ctx := requestcontext.WithSupplierID(req.Context(), supplierID)
	ctx = requestcontext.WithSubject(ctx, subject)
	return req.WithContext(ctx)
}

// WithRequestID sets the request id the metadata middleware would set.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
