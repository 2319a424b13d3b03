package model

// DutInfo describes one device under test as it appears in the run start
// artifact.
type DutInfo struct {
	Hostname           string         `json:"hostname"`
	HardwareComponents []HardwareInfo `json:"hardware_components,omitempty"`
	SoftwareInfos      []SoftwareInfo `json:"software_infos,omitempty"`
	PlatformInfo       PlatformInfo   `json:"platform_info"`
}

// HardwareInfo describes a hardware component. HardwareInfoID is assigned
// when the component is added to a DUT.
type HardwareInfo struct {
	HardwareInfoID         string `json:"hardware_info_id"`
	Arrangement            string `json:"arrangement,omitempty"`
	Name                   string `json:"name"`
	PartNumber             string `json:"part_number,omitempty"`
	Manufacturer           string `json:"manufacturer,omitempty"`
	ManufacturerPartNumber string `json:"manufacturer_part_number,omitempty"`
	PartType               string `json:"part_type,omitempty"`
	Version                string `json:"version,omitempty"`
	Revision               string `json:"revision,omitempty"`
	SerialNumber           string `json:"serial_number,omitempty"`
	Location               string `json:"location,omitempty"`
	Devpath                string `json:"devpath,omitempty"`
	ComputerSystem         string `json:"computer_system,omitempty"`
	FRU                    string `json:"fru,omitempty"`
	OdataID                string `json:"odata_id,omitempty"`
}

// SoftwareInfo describes a piece of software running on the DUT.
type SoftwareInfo struct {
	SoftwareInfoID string `json:"software_info_id"`
	Arrangement    string `json:"arrangement,omitempty"`
	Name           string `json:"name"`
	Version        string `json:"version,omitempty"`
	Revision       string `json:"revision,omitempty"`
	SoftwareType   string `json:"software_type,omitempty"`
	ComputerSystem string `json:"computer_system,omitempty"`
}

// PlatformInfo holds free-form platform descriptions.
type PlatformInfo struct {
	Info []string `json:"info,omitempty"`
}
