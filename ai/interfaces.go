package ai

import (
	"context"

	"github.com/poiesic/tutorder/core"
)

// OrderSplitter turns a chunk of raw text into individual order texts.
// Implementations must be thread-safe for concurrent use.
type OrderSplitter interface {
	// SplitOrders strips non-order content from chunk and segments the rest
	// into one string per order, in the order they appear.
	// Service or parse failures are recovered locally: the result is an
	// empty slice, never an error.
	SplitOrders(ctx context.Context, chunk string) []string
}

// FieldExtractor pulls structured fields out of a single order text.
// Implementations must be thread-safe for concurrent use.
type FieldExtractor interface {
	// ExtractFields returns the fields found in orderText keyed by the
	// core.Field* constants. An empty mapping means extraction failed.
	ExtractFields(ctx context.Context, orderText string) core.Fields
}

// Provider aggregates the text-understanding services for convenient
// initialization and lifecycle management.
type Provider interface {
	// Splitter returns the order segmentation service.
	Splitter() OrderSplitter

	// Extractor returns the field extraction service.
	Extractor() FieldExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
