package results

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ocpdiag/ocpdiag/model"
)

func TestHardwareIDsUnique(t *testing.T) {
	const (
		duts    = 20
		perDut  = 50
		workers = 4
	)
	ids := NewIDAllocator()

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < duts; i++ {
		g.Go(func() error {
			dut := NewDutInfoWithIDs("host", ids)
			for j := 0; j < perDut; j++ {
				rec := dut.AddHardware(model.HardwareInfo{Name: "dimm"})
				mu.Lock()
				seen[rec.ID()] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, duts*perDut)
}

func TestDutInfo(t *testing.T) {
	ids := NewIDAllocator()
	dut := NewDutInfoWithIDs("node1", ids)

	hw := dut.AddHardware(model.HardwareInfo{HardwareInfoID: "caller-set", Name: "cpu0", Manufacturer: "acme"})
	hw2 := dut.AddHardware(model.HardwareInfo{Name: "cpu1"})
	sw := dut.AddSoftware(model.SoftwareInfo{Name: "bios", Version: "1.2"})
	dut.AddPlatformInfo("rack 4")

	require.Equal(t, "0", hw.ID())
	require.Equal(t, "1", hw2.ID())
	require.Equal(t, "0", sw.ID())
	require.Equal(t, "acme", hw.Data().Manufacturer)
	require.Equal(t, "node1", dut.Hostname())

	m := dut.ToModel()
	require.Equal(t, "node1", m.Hostname)
	require.Len(t, m.HardwareComponents, 2)
	require.Equal(t, "0", m.HardwareComponents[0].HardwareInfoID)
	require.Len(t, m.SoftwareInfos, 1)
	require.Equal(t, "1.2", m.SoftwareInfos[0].Version)
	require.Equal(t, []string{"rack 4"}, m.PlatformInfo.Info)

	// The snapshot does not alias the builder.
	dut.AddPlatformInfo("row 2")
	require.Len(t, m.PlatformInfo.Info, 1)
}

func TestIntIncrementer(t *testing.T) {
	var inc IntIncrementer
	require.Equal(t, 0, inc.Next())
	require.Equal(t, 1, inc.Next())
	require.Equal(t, 2, inc.Next())
}
