package models

// APIResponse is the envelope every HTTP handler replies with
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(code, err string) APIResponse {
	return APIResponse{
		Success: false,
		Code:    code,
		Error:   err,
	}
}

func MessageResponse(message string) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
	}
}

// Error codes carried in APIResponse.Code
const (
	CodeInventoryUnavailable = "INVENTORY_UNAVAILABLE"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeRateLimited          = "RATE_LIMITED"
	CodeLaunchFailed         = "LAUNCH_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
)

// EventCatalogChanged is the only event type pushed over /ws
const EventCatalogChanged = "catalog_changed"

// CatalogEvent is pushed to websocket clients whenever the catalog is replaced
type CatalogEvent struct {
	Type        string `json:"type"`
	SnapshotID  string `json:"snapshot_id"`
	DeviceCount int    `json:"device_count"`
	RefreshedAt int64  `json:"refreshed_at"`
}
