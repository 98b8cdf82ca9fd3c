package audit

import "strings"

// Actions recorded for driver account events.
const (
	ActionProvision   = "driver_provision"
	ActionDeprovision = "driver_deprovision"
	ActionCredential  = "driver_credential_link"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

const (
	routeCreateDriver = "/api/create-driver-auth-user"
	routeDeleteDriver = "/api/delete-driver-auth-user"
)

// ParseRoute returns action and resource for a request path (e.g. /api/create-driver-auth-user).
// The two provisioning routes map to ActionProvision and ActionDeprovision; other
// paths take the verb from the leading hyphenated word of the last segment.
func ParseRoute(path string) ActionResource {
	path = strings.TrimSuffix(path, "/")
	switch path {
	case routeCreateDriver:
		return ActionResource{Action: ActionProvision, Resource: ResourceDriver}
	case routeDeleteDriver:
		return ActionResource{Action: ActionDeprovision, Resource: ResourceDriver}
	}
	slash := strings.LastIndex(path, "/")
	if slash < 0 || slash == len(path)-1 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	segment := strings.ToLower(path[slash+1:])
	parts := strings.Split(segment, "-")
	resource := "unknown"
	if len(parts) > 1 {
		resource = parts[1]
	}
	return ActionResource{Action: verbToAction(parts[0]), Resource: resource}
}

func verbToAction(verb string) string {
	switch verb {
	case "get", "find", "lookup":
		return "get"
	case "list", "search":
		return "list"
	case "create", "add", "provision":
		return "create"
	case "update", "repair":
		return "update"
	case "delete", "remove", "deprovision":
		return "delete"
	default:
		return verb
	}
}
