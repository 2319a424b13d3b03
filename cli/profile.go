package cli

// This file contains CPU profiling of the diagnostic process.

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/google/pprof/profile"

	"github.com/ocpdiag/ocpdiag/model"
)

// ProfileStep is the test step the CPU profile is attached to.
const ProfileStep = "cpu_profile"

type cpuProfile struct {
	path string
	f    *os.File
}

func startCPUProfile(path string) (*cpuProfile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return &cpuProfile{path: path, f: f}, nil
}

func (p *cpuProfile) Stop() error {
	pprof.StopCPUProfile()
	if err := p.f.Close(); err != nil {
		return fmt.Errorf("failed to close CPU profile: %w", err)
	}
	return nil
}

// annotateProfile appends comments to the profile at path and returns its
// number of samples.
func annotateProfile(path string, comments ...string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open CPU profile: %w", err)
	}
	prof, err := profile.Parse(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to parse CPU profile: %w", err)
	}

	prof.Comments = append(prof.Comments, comments...)
	if err := prof.CheckValid(); err != nil {
		return 0, fmt.Errorf("invalid CPU profile: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite CPU profile: %w", err)
	}
	if err := prof.Write(out); err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to write CPU profile: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to write CPU profile: %w", err)
	}
	return len(prof.Sample), nil
}

func profileFile(path string, samples int) model.File {
	return model.File{
		UploadAsName: filepath.Base(path),
		OutputPath:   path,
		Description:  fmt.Sprintf("CPU profile of the diagnostic (%d samples)", samples),
		ContentType:  "application/octet-stream",
		Tags:         []model.Tag{{Tag: "pprof"}},
	}
}
