package main

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const scanTimeout = 5 * time.Second

// mDNS service types.
const (
	serviceHue  = "_hue._tcp"
	serviceWLED = "_wled._tcp"
)

// Device is a Hue bridge or WLED controller found on the network.
type Device struct {
	Kind     string // "hue" or "wled"
	ID       string
	Model    string
	Name     string
	IP       net.IP
	Port     int
	Hostname string
}

func (d Device) String() string {
	id := d.ID
	if id == "" {
		id = d.Hostname
	}
	return fmt.Sprintf("%-4s %s (%s) at %s:%d", d.Kind, d.Name, id, d.IP, d.Port)
}

// Browse collects devices announcing service until ctx is done. Entries
// with the same ID are reported once.
func Browse(ctx context.Context, service string) ([]Device, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		devices []Device
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		seen := make(map[string]bool)
		for entry := range entries {
			d := parseDevice(service, entry)
			key := d.ID
			if key == "" {
				key = d.Hostname
			}
			if key != "" && seen[key] {
				continue
			}
			seen[key] = true
			devices = append(devices, d)
		}
	}()

	if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
		return nil, fmt.Errorf("browsing for %s: %w", service, err)
	}
	<-ctx.Done()
	// The resolver closes entries once it has shut down.
	wg.Wait()
	return devices, nil
}

// DiscoverBridges returns the Hue bridges found before ctx is done.
func DiscoverBridges(ctx context.Context) ([]Device, error) {
	return Browse(ctx, serviceHue)
}

// DiscoverAll browses for Hue bridges and WLED controllers at once.
func DiscoverAll(ctx context.Context) ([]Device, error) {
	services := []string{serviceHue, serviceWLED}
	results := make([][]Device, len(services))
	errs := make([]error, len(services))

	var wg sync.WaitGroup
	for i, svc := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Browse(ctx, svc)
		}()
	}
	wg.Wait()

	var all []Device
	for i := range services {
		if errs[i] != nil {
			return nil, errs[i]
		}
		all = append(all, results[i]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Kind != all[j].Kind {
			return all[i].Kind < all[j].Kind
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func parseDevice(service string, entry *zeroconf.ServiceEntry) Device {
	d := Device{
		Kind:     "wled",
		Name:     entry.Instance,
		Port:     entry.Port,
		Hostname: entry.HostName,
	}
	if service == serviceHue {
		d.Kind = "hue"
	}

	if len(entry.AddrIPv4) > 0 {
		d.IP = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		d.IP = entry.AddrIPv6[0]
	}

	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "bridgeid", "mac":
			d.ID = value
		case "modelid":
			d.Model = value
		}
	}
	return d
}
