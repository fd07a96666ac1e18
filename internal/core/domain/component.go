package domain

// Device describes this controller for discovery purposes.
type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
}

type GenericSensor struct {
	Device            Device
	Key               string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // temperature, humidity
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Key      string
	Name     string
	UniqueId string
	Icon     string
}

type GenericSelect struct {
	Device   Device
	Key      string
	Name     string
	UniqueId string
	Icon     string
	Options  []string
}
