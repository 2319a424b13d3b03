package results

// This file contains the builders describing the devices under test.

import (
	"sync"

	"github.com/ocpdiag/ocpdiag/model"
)

// HwRecord is an immutable handle to registered-able hardware info.
type HwRecord struct {
	data model.HardwareInfo
}

// NewHwRecord wraps info as is. It is meant for tests and for records
// whose ID was assigned elsewhere; use DutInfo.AddHardware otherwise.
func NewHwRecord(info model.HardwareInfo) HwRecord {
	return HwRecord{data: info}
}

// ID returns the hardware info ID.
func (r HwRecord) ID() string { return r.data.HardwareInfoID }

// Data returns a copy of the hardware info.
func (r HwRecord) Data() model.HardwareInfo { return r.data }

// SwRecord is an immutable handle to registered-able software info.
type SwRecord struct {
	data model.SoftwareInfo
}

// NewSwRecord wraps info as is.
func NewSwRecord(info model.SoftwareInfo) SwRecord {
	return SwRecord{data: info}
}

func (r SwRecord) ID() string { return r.data.SoftwareInfoID }

func (r SwRecord) Data() model.SoftwareInfo { return r.data }

// DutInfo accumulates the hardware, software and platform information of
// one device under test. It is safe for concurrent use.
type DutInfo struct {
	ids      *IDAllocator
	mu       sync.Mutex
	hostname string
	hardware []model.HardwareInfo
	software []model.SoftwareInfo
	platform []string
}

// NewDutInfo returns a DutInfo drawing IDs from DefaultIDs.
func NewDutInfo(hostname string) *DutInfo {
	return NewDutInfoWithIDs(hostname, DefaultIDs)
}

// NewDutInfoWithIDs returns a DutInfo drawing IDs from ids.
func NewDutInfoWithIDs(hostname string, ids *IDAllocator) *DutInfo {
	return &DutInfo{hostname: hostname, ids: ids}
}

// AddHardware assigns a fresh ID to info, overwriting any set by the
// caller, and returns a record for it.
func (d *DutInfo) AddHardware(info model.HardwareInfo) HwRecord {
	info.HardwareInfoID = d.ids.NextHardwareID()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hardware = append(d.hardware, info)
	return HwRecord{data: info}
}

// AddSoftware assigns a fresh ID to info and returns a record for it.
func (d *DutInfo) AddSoftware(info model.SoftwareInfo) SwRecord {
	info.SoftwareInfoID = d.ids.NextSoftwareID()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.software = append(d.software, info)
	return SwRecord{data: info}
}

// AddPlatformInfo appends a free-form platform description.
func (d *DutInfo) AddPlatformInfo(info string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.platform = append(d.platform, info)
}

func (d *DutInfo) Hostname() string {
	return d.hostname
}

// ToModel returns a snapshot of the DUT as written to the run start
// artifact.
func (d *DutInfo) ToModel() model.DutInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := model.DutInfo{Hostname: d.hostname}
	out.HardwareComponents = append(out.HardwareComponents, d.hardware...)
	out.SoftwareInfos = append(out.SoftwareInfos, d.software...)
	out.PlatformInfo.Info = append(out.PlatformInfo.Info, d.platform...)
	return out
}
