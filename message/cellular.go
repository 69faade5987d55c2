package message

type CellularTechnology uint8

const (
	CellularTechnologyInvalid CellularTechnology = 0
	CellularTechnologyGsm     CellularTechnology = 1
	CellularTechnologyCdma    CellularTechnology = 2
	CellularTechnologyUmts    CellularTechnology = 3
	CellularTechnologyLte     CellularTechnology = 4
	CellularTechnologyNr      CellularTechnology = 5
)

func (t CellularTechnology) String() string {
	switch t {
	case CellularTechnologyInvalid:
		return "Invalid Technology"
	case CellularTechnologyGsm:
		return "GSM"
	case CellularTechnologyCdma:
		return "CDMA"
	case CellularTechnologyUmts:
		return "UMTS"
	case CellularTechnologyLte:
		return "LTE"
	case CellularTechnologyNr:
		return "NR"
	default:
		return "Unknown Technology"
	}
}

// Cellular is one observed cell. Identity fields not applicable to the
// technology are left zero (e.g. Pci is LTE/NR only, Bsic is GSM only).
type Cellular struct {
	Header `msgpack:",inline"`

	Technology     CellularTechnology `json:"technology"`
	Mcc            uint16             `json:"mcc"`
	Mnc            uint16             `json:"mnc"`
	AreaCode       uint32             `json:"area_code"` // LAC or TAC
	CellID         uint64             `json:"cell_id"`
	Channel        uint32             `json:"channel"` // ARFCN, UARFCN, EARFCN or NR-ARFCN
	Pci            uint16             `json:"pci,omitempty"`
	Psc            uint16             `json:"psc,omitempty"`
	Bsic           uint8              `json:"bsic,omitempty"`
	SignalStrength float32            `json:"signal_strength"` // RSSI, RSCP or RSRP in dBm
	SignalQuality  float32            `json:"signal_quality"`  // RSRQ or Ec/Io in dB
	Serving        bool               `json:"serving"`
}

func (*Cellular) Kind() Kind {
	return KindCellular
}
