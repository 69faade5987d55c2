package message

type Wifi struct {
	Header `msgpack:",inline"`

	Bssid          string  `json:"bssid"`
	Ssid           string  `json:"ssid"`
	Channel        uint16  `json:"channel"`
	Frequency      uint32  `json:"frequency"` // MHz
	SignalStrength float32 `json:"signal_strength"`
	Encryption     string  `json:"encryption"`
	Standard       string  `json:"standard"`
}

func (*Wifi) Kind() Kind {
	return KindWifi
}

type Bluetooth struct {
	Header `msgpack:",inline"`

	SourceAddress          string   `json:"source_address"`
	OtaDeviceName          string   `json:"ota_device_name"`
	Technology             string   `json:"technology"`
	SupportedTechnologies  []string `json:"supported_technologies"`
	SignalStrength         float32  `json:"signal_strength"`
	TxPower                float32  `json:"tx_power"`
	DestinationAddress     string   `json:"destination_address,omitempty"`
	ManufacturerIdentifier string   `json:"manufacturer_identifier,omitempty"`
}

func (*Bluetooth) Kind() Kind {
	return KindBluetooth
}

type Gnss struct {
	Header `msgpack:",inline"`

	Constellation    string  `json:"constellation"`
	SpaceVehicleID   uint32  `json:"space_vehicle_id"`
	CarrierFrequency float64 `json:"carrier_frequency"` // Hz
	CarrierToNoise   float32 `json:"carrier_to_noise"`  // dB-Hz
	Agc              float32 `json:"agc"`
	LatitudeStdDev   float32 `json:"latitude_std_dev"`
	LongitudeStdDev  float32 `json:"longitude_std_dev"`
}

func (*Gnss) Kind() Kind {
	return KindGnss
}

type NetworkRegistration struct {
	Domain       string `json:"domain"`
	AccessType   string `json:"access_type"`
	Technology   string `json:"technology"`
	RejectCause  int32  `json:"reject_cause"`
	Roaming      bool   `json:"roaming"`
	Registration string `json:"registration"`
}

type PhoneState struct {
	Header `msgpack:",inline"`

	SimState            string                 `json:"sim_state"`
	SimOperator         string                 `json:"sim_operator"`
	Imsi                string                 `json:"imsi"`
	ServiceState        string                 `json:"service_state"`
	NetworkRegistration []*NetworkRegistration `json:"network_registration"`
}

func (*PhoneState) Kind() Kind {
	return KindPhoneState
}

type DeviceStatus struct {
	Header `msgpack:",inline"`

	BatteryLevelPercent uint8 `json:"battery_level_percent"`
	GnssFix             bool  `json:"gnss_fix"`
}

func (*DeviceStatus) Kind() Kind {
	return KindDeviceStatus
}
