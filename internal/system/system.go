// Package system holds host-level helpers: ffmpeg capability probing, device
// classification and input discovery.
package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/source"
)

const probeTimeout = 10 * time.Second

// FFmpegProbe asks the local ffmpeg which encoders and muxers it was built
// with. The lists are read once and cached.
type FFmpegProbe struct {
	Binary string

	once     sync.Once
	encoders map[string]bool
	muxers   map[string]bool
	err      error
}

func NewFFmpegProbe(binary string) *FFmpegProbe {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegProbe{Binary: binary}
}

// Load runs the probe. Later calls return the first result.
func (p *FFmpegProbe) Load(ctx context.Context) error {
	p.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		out, err := exec.CommandContext(ctx, p.Binary, "-hide_banner", "-encoders").Output()
		if err != nil {
			p.err = fmt.Errorf("ffmpeg -encoders: %w", err)
			return
		}
		p.encoders = parseCapabilityList(out)

		out, err = exec.CommandContext(ctx, p.Binary, "-hide_banner", "-muxers").Output()
		if err != nil {
			p.err = fmt.Errorf("ffmpeg -muxers: %w", err)
			return
		}
		p.muxers = parseCapabilityList(out)
	})
	return p.err
}

func (p *FFmpegProbe) HasEncoder(name string) bool {
	if p.Load(context.Background()) != nil {
		return false
	}
	return p.encoders[name]
}

func (p *FFmpegProbe) HasMuxer(name string) bool {
	if p.Load(context.Background()) != nil {
		return false
	}
	return p.muxers[name]
}

// parseCapabilityList reads the table printed by `ffmpeg -encoders` or
// `ffmpeg -muxers`: a legend, a dashed separator, then one
// "<flags> <name> <description>" line per entry.
func parseCapabilityList(out []byte) map[string]bool {
	names := make(map[string]bool)
	started := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !started {
			if strings.HasPrefix(line, "--") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

// DeviceClass is a coarse guess at how much work the host can take.
type DeviceClass string

const (
	Desktop     DeviceClass = "desktop"
	Constrained DeviceClass = "constrained"
)

const (
	constrainedMemory = 8 << 30
	constrainedCores  = 4
)

// DetectDeviceClass classifies the host by logical cores and total memory.
// Unknown values count as desktop.
func DetectDeviceClass() DeviceClass {
	if n, err := cpu.Counts(true); err == nil && n > 0 && n <= constrainedCores {
		return Constrained
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 && vm.Total < constrainedMemory {
		return Constrained
	}
	return Desktop
}

// MaxParticles is the resolver cap for the device class.
func (d DeviceClass) MaxParticles() int {
	if d == Constrained {
		return particle.MaxParticlesConstrained
	}
	return particle.MaxParticlesDesktop
}

// CollectInputs expands path into the list of batch inputs. A directory yields
// its PDFs and images ordered by modification time, oldest first.
func CollectInputs(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	type input struct {
		path string
		mod  time.Time
	}
	var found []input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !source.IsImagePath(name) && !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, input{filepath.Join(path, name), info.ModTime()})
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("в папке %s не найдено PDF или изображений", path)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.path
	}
	return out, nil
}
