// Package eventstreamutils is the eventstream utility package
package eventstreamutils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/eventstream"
	"github.com/passagehq/passage/pkg/eventstream/kafka"
	"github.com/passagehq/passage/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string

	// Brokers is a comma-separated broker list for the kafka provider.
	Brokers string

	// Topic is the destination topic for the kafka provider.
	Topic string

	Logger *zap.Logger
}

// NewPublisher builds the event publisher for the configured provider.
// An empty provider disables publication via the nop publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		var brokers []string
		for _, b := range strings.Split(o.Brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   o.Topic,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.ProviderType)
	}
}
