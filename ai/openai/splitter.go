package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/tutorder/ai"
	"github.com/tmc/langchaingo/llms"
)

// OrderSplitter implements ai.OrderSplitter using an OpenAI-compatible chat API.
type OrderSplitter struct {
	client llms.Model
	logger *slog.Logger
}

func newOrderSplitter(client llms.Model) *OrderSplitter {
	return &OrderSplitter{
		client: client,
		logger: slog.Default().With("component", "openai-splitter"),
	}
}

// NewOrderSplitter creates an order splitter using the provided configuration.
//
// Returns ai.OrderSplitter interface to enforce abstraction.
func NewOrderSplitter(config *ai.Config) (ai.OrderSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newModel(config)
	if err != nil {
		return nil, err
	}
	return newOrderSplitter(client), nil
}

// SplitOrders asks the model to clean chunk and segment it into orders.
// Any failure is logged and yields an empty slice.
func (s *OrderSplitter) SplitOrders(ctx context.Context, chunk string) []string {
	s.logger.Info("calling model to split orders", "chars", len([]rune(chunk)))

	response, err := complete(ctx, s.client, splitSystemPrompt, buildSplitUserPrompt(chunk))
	if err != nil {
		s.logger.Error("failed to generate content", "err", err)
		return []string{}
	}
	s.logger.Debug("raw split response", "response", response)

	orders, err := parseOrderList(response)
	if err != nil {
		s.logger.Error("failed to parse split response", "response", response, "err", err)
		return []string{}
	}

	s.logger.Info("split orders", "count", len(orders))
	return orders
}
