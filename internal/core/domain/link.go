package domain

// LinkState is the state of the wireless connection.
type LinkState int

const (
	LinkDown LinkState = iota
	LinkStarting
	LinkScanning
	LinkConnecting
	LinkConnected
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "down"
	case LinkStarting:
		return "starting"
	case LinkScanning:
		return "scanning"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// AccessPoint is a single scan result.
type AccessPoint struct {
	SSID   string
	BSSID  string
	Signal int
}
