package session

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DebugSnapshot renders the session's current state as JSON, for tooling
// that wants a point-in-time view without reaching into internals
// directly. Discovered services are included only when Config.DebugData is
// set; attribute values are never included.
func (s *Session) DebugSnapshot() ([]byte, error) {
	fields := map[string]interface{}{
		"id":         s.id.String(),
		"state":      s.StateString(),
		"role":       roleString(s.role),
		"server_mtu": float64(s.ServerMTU()),
		"used_mtu":   float64(s.UsedMTU()),
		"pending":    s.tx.hasPending(),
	}

	if s.cfg.DebugData {
		if s.discovery != nil {
			var services []interface{}
			for _, svc := range s.discovery.Services {
				services = append(services, map[string]interface{}{
					"uuid":         svc.UUID.String(),
					"start_handle": float64(svc.StartHandle),
					"end_handle":   float64(svc.EndHandle),
				})
			}
			fields["discovered_services"] = services
		}
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, wrap(ErrInvalidArgument, "building debug snapshot: %v", err)
	}
	return protojson.Marshal(st)
}

func roleString(r Role) string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
