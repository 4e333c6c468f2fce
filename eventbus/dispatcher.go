package eventbus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/akriventsev/projector/projection"
)

// Decoder turns a raw message body into a domain event understood by a
// registered projection.Definition's Fold.
type Decoder func(data []byte) (projection.Event, error)

// Route binds one subject to the projection type it feeds and the decoder
// that understands its wire format. One subject can only drive one
// projection type; fan-out across multiple projections within Save is the
// repository's job (SPEC_FULL §4.5), not the dispatcher's.
type Route struct {
	Subject        string
	ProjectionType any
	Decode         Decoder
}

// TenantFunc extracts the tenant scope from a delivered message, e.g. from a
// header set by the publisher.
type TenantFunc func(msg Message) string

// Dispatcher subscribes to a Broker and feeds every delivered commit into
// Repository.Save, the fan-out write path (SPEC_FULL §4.5/§6). It is the
// external trigger that turns "an event was appended to the source event
// store" into "the projection repository's Save was called" — the
// repository itself has no transport awareness.
type Dispatcher struct {
	broker Broker
	repo   *projection.Repository
	routes map[string]Route
	tenant TenantFunc
	logger projection.Logger
}

// NewDispatcher creates a dispatcher bound to a repository and a broker.
// tenant defaults to a fixed single-tenant "default" scope when nil.
func NewDispatcher(broker Broker, repo *projection.Repository, logger projection.Logger, tenant TenantFunc) *Dispatcher {
	if tenant == nil {
		tenant = func(Message) string { return "default" }
	}
	if logger == nil {
		logger = projection.NopLogger{}
	}
	return &Dispatcher{broker: broker, repo: repo, routes: make(map[string]Route), tenant: tenant, logger: logger}
}

// Register adds a route and subscribes to its subject immediately.
func (d *Dispatcher) Register(ctx context.Context, route Route) error {
	if route.Subject == "" {
		return fmt.Errorf("route must have a subject")
	}
	if route.Decode == nil {
		return fmt.Errorf("route %s must provide a decoder", route.Subject)
	}
	d.routes[route.Subject] = route
	return d.broker.Subscribe(ctx, route.Subject, d.handle(route))
}

func (d *Dispatcher) handle(route Route) Handler {
	return func(ctx context.Context, msg Message) error {
		event, err := route.Decode(msg.Data)
		if err != nil {
			return fmt.Errorf("decoding message on %s: %w", route.Subject, err)
		}

		origin := projection.Origin{
			AggregateRootID:   msg.Headers["aggregate-root-id"],
			AggregateRevision: parseInt64(msg.Headers["aggregate-revision"]),
			EventPosition:     parseInt64(msg.Headers["event-position"]),
		}

		results, err := d.repo.Save(ctx, d.tenant(msg), route.ProjectionType, event, origin)
		if err != nil {
			d.logger.Error("dispatcher: save rejected", "subject", route.Subject, "err", err)
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				d.logger.Error("dispatcher: version write failed", "subject", route.Subject, "version", r.Version.Revision, "err", r.Err)
			}
		}
		return nil
	}
}

// Close stops the underlying broker, tearing down all subscriptions.
func (d *Dispatcher) Close() error {
	return d.broker.Close()
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
