package message

const (
	CurrentVersion = "2.0"
	LegacyVersion  = "1.0"
)

type HandshakeRequest struct {
	DeviceName string `json:"device_name"`
	SessionID  string `json:"session_id"`
	Version    string `json:"version"`
	Txtime     int64  `json:"txtime"` // epoch milliseconds
}

type HandshakeResponse struct {
	Accepted      bool   `json:"accepted"`
	ServerVersion string `json:"server_version"`
	Reason        string `json:"reason,omitempty"`
}

type LegacyHello struct {
	DeviceName string `json:"device_name"`
}

type LegacyHelloReply struct {
	Status string `json:"status"`
}
