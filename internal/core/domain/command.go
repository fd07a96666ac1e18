package domain

// Command is a decoded instruction for a device output.
type Command int

const (
	CommandOn Command = iota
	CommandOff
	CommandToggle
)

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "ON"
	case CommandOff:
		return "OFF"
	case CommandToggle:
		return "TOGGLE"
	default:
		return "UNKNOWN"
	}
}

// Apply returns the level that results from applying the command to current.
func (c Command) Apply(current bool) bool {
	switch c {
	case CommandOn:
		return true
	case CommandOff:
		return false
	default:
		return !current
	}
}

// CommandFromLevel maps a boolean level to the command that sets it.
func CommandFromLevel(level bool) Command {
	if level {
		return CommandOn
	}
	return CommandOff
}
