package history

import (
	"context"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostRow struct {
	hostname string
	err      error
}

func (r hostRow) Err() error { return r.err }

func (r hostRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	*dest[0].(*string) = r.hostname

	return nil
}

func (r hostRow) ScanStruct(any) error { return r.err }

type hostConn struct {
	row   hostRow
	calls int
}

func (c *hostConn) QueryRow(context.Context, string, ...any) driver.Row {
	c.calls++
	return c.row
}

func TestHostGuard(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		row     hostRow
		wantErr error
		queried bool
	}{
		{name: "no allow list", row: hostRow{hostname: "prod-1"}},
		{name: "allowed", allowed: []string{"ch-history"}, row: hostRow{hostname: " ch-history\n"}, queried: true},
		{name: "not allowed", allowed: []string{"ch-history"}, row: hostRow{hostname: "prod-1"}, wantErr: ErrHostNotAllowed, queried: true},
		{name: "query fails", allowed: []string{"ch-history"}, row: hostRow{err: assert.AnError}, wantErr: assert.AnError, queried: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &hostConn{row: tt.row}
			g := &hostGuard{allowed: tt.allowed, log: logrus.New()}

			err := g.check(t.Context(), conn)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tt.queried, conn.calls > 0)
		})
	}
}
