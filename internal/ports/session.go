package ports

import (
	"context"

	"github.com/Agrid-Dev/thermoremote/internal/session"
)

// SessionService is the port presentation adapters (HTTP/MQTT/Modbus) use.
type SessionService interface {
	Get() session.Snapshot
	Dispatch(ctx context.Context, in session.Intent) (session.Snapshot, error)
	Subscribe() (<-chan session.Snapshot, func())
}
