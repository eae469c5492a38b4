package seriallink

import (
	"context"
	"fmt"

	"github.com/awygle/udptherbone/sim/modeling"
)

// Serve starts the link and runs the domain's engine every time bytes
// arrive, until ctx is done or the port fails. The domain must have an engine
// attached and must contain the link.
func Serve(ctx context.Context, link *Link, domain *modeling.Domain) error {
	engine := domain.Engine()
	if engine == nil {
		return fmt.Errorf("domain %s has no engine", domain.Name())
	}

	err := link.Start(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-link.Ready():
		}

		domain.TickLater()

		err := engine.Run()
		if err != nil {
			return fmt.Errorf("run %s: %w", domain.Name(), err)
		}

		err = link.Err()
		if err != nil {
			return err
		}
	}
}
