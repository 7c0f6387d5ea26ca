// Package facts registers a small set of host-introspection callables
// demonstrating how a real deployment wires domain-specific operations
// into a Registry, using elastic/go-sysinfo and jaypipes/ghw to expose
// host, memory, and GPU readings as ordinary registered callables a
// controller can invoke over a tunnel.
package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/elastic/go-sysinfo"
	"github.com/jaypipes/ghw"

	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/registry"
)

// Register adds every fact-gathering callable to reg. Call it once during
// bubble startup, alongside any user-supplied registrations.
func Register(reg *registry.Registry) {
	reg.Register("facts.host", hostFacts)
	reg.Register("facts.memory", memoryFacts)
	reg.Register("facts.gpu", gpuFacts)
}

// hostFacts reports hostname, OS, kernel, and architecture.
func hostFacts(_ context.Context, _ codec.Value) (codec.Value, error) {
	host, err := sysinfo.Host()
	if err != nil {
		return codec.Value{}, fmt.Errorf("facts: read host info: %w", err)
	}
	info := host.Info()

	fields := map[string]codec.Value{
		"hostname":       codec.String(info.Hostname),
		"os":             codec.String(info.OS.Name),
		"platform":       codec.String(info.OS.Platform),
		"kernel_version": codec.String(info.KernelVersion),
		"architecture":   codec.String(info.Architecture),
	}
	order := []string{"hostname", "os", "platform", "kernel_version", "architecture"}
	return codec.MapOf(fields, order), nil
}

// memoryFacts reports total, available, and used RAM in bytes as a
// structured result a caller can act on.
func memoryFacts(_ context.Context, _ codec.Value) (codec.Value, error) {
	host, err := sysinfo.Host()
	if err != nil {
		return codec.Value{}, fmt.Errorf("facts: read host info: %w", err)
	}
	mem, err := host.Memory()
	if err != nil {
		return codec.Value{}, fmt.Errorf("facts: read memory info: %w", err)
	}

	fields := map[string]codec.Value{
		"total_bytes":     codec.Int(fmt.Sprintf("%d", mem.Total)),
		"available_bytes": codec.Int(fmt.Sprintf("%d", mem.Available)),
		"used_bytes":      codec.Int(fmt.Sprintf("%d", mem.Used)),
	}
	order := []string{"total_bytes", "available_bytes", "used_bytes"}
	return codec.MapOf(fields, order), nil
}

// gpuFacts reports every detected graphics card's vendor and product name.
func gpuFacts(_ context.Context, _ codec.Value) (codec.Value, error) {
	info, err := ghw.GPU()
	if err != nil {
		return codec.Value{}, fmt.Errorf("facts: read GPU info: %w", err)
	}

	cards := make([]codec.Value, 0, len(info.GraphicsCards))
	for _, gpu := range info.GraphicsCards {
		vendor, product := "", ""
		if gpu.DeviceInfo != nil {
			vendor = gpu.DeviceInfo.Vendor.Name
			product = gpu.DeviceInfo.Product.Name
		}
		cards = append(cards, codec.MapOf(map[string]codec.Value{
			"address":   codec.String(gpu.Address),
			"vendor":    codec.String(vendor),
			"product":   codec.String(product),
			"is_nvidia": codec.Bool(strings.EqualFold(vendor, "nvidia")),
		}, []string{"address", "vendor", "product", "is_nvidia"}))
	}
	return codec.List(cards...), nil
}
