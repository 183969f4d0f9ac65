// Package testutil starts the Postgres, Redis and RabbitMQ containers used by
// integration-style tests.
package testutil

import (
	"context"
	"errors"

	"github.com/testcontainers/testcontainers-go"
)

// abort terminates a container whose setup failed part way and returns the
// setup error, joined with the termination error if there is one.
func abort(ctx context.Context, c testcontainers.Container, err error) error {
	if terr := c.Terminate(ctx); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}
