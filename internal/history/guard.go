package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// ErrHostNotAllowed is returned by Start when the server's hostname is not in
// CLICKHOUSE_ALLOWED_HOSTS.
var ErrHostNotAllowed = errors.New("refusing to write history to non-allowed ClickHouse host")

type rowQuerier interface {
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// hostGuard checks the server hostname before any schema change. An empty
// allow list disables the check.
type hostGuard struct {
	allowed []string
	log     logrus.FieldLogger
}

func (g *hostGuard) check(ctx context.Context, conn rowQuerier) error {
	if len(g.allowed) == 0 {
		return nil
	}

	var hostname string
	if err := conn.QueryRow(ctx, "SELECT hostName()").Scan(&hostname); err != nil {
		return fmt.Errorf("failed to query ClickHouse hostname: %w", err)
	}

	hostname = strings.TrimSpace(hostname)
	if !slices.Contains(g.allowed, hostname) {
		return fmt.Errorf("%w: %q (allowed: %v)", ErrHostNotAllowed, hostname, g.allowed)
	}

	g.log.WithField("hostname", hostname).Debug("ClickHouse hostname allowed")

	return nil
}
