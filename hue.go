package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const hueRequestTimeout = 10 * time.Second

var hueHTTP = &http.Client{
	Timeout: hueRequestTimeout,
	Transport: &http.Transport{
		// Bridges serve a self-signed certificate.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// ErrLinkButtonNotPressed is returned by Pair until the link button on the
// bridge has been pressed.
var ErrLinkButtonNotPressed = errors.New("link button not pressed")

// ErrUnauthorized is returned when the bridge rejects the application key.
var ErrUnauthorized = errors.New("unauthorized")

// hueBridge talks to the REST API of one bridge.
type hueBridge struct {
	host     string // IP address, optionally with port
	username string // application key, empty before pairing
}

// Pair registers ambisync with the bridge. The link button must have been
// pressed shortly before.
func (b hueBridge) Pair(ctx context.Context) (BridgeCredentials, error) {
	body := strings.NewReader(`{"devicetype":"ambisync#device","generateclientkey":true}`)
	resp, err := b.do(ctx, http.MethodPost, "/api", body)
	if err != nil {
		return BridgeCredentials{}, fmt.Errorf("pairing request: %w", err)
	}
	defer resp.Body.Close()

	var result []struct {
		Success *struct {
			Username  string `json:"username"`
			Clientkey string `json:"clientkey"`
		} `json:"success"`
		Error *struct {
			Type        int    `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return BridgeCredentials{}, fmt.Errorf("decoding pair response: %w", err)
	}
	if len(result) == 0 {
		return BridgeCredentials{}, fmt.Errorf("empty pair response")
	}

	switch r := result[0]; {
	case r.Error != nil && r.Error.Type == 101:
		return BridgeCredentials{}, ErrLinkButtonNotPressed
	case r.Error != nil:
		return BridgeCredentials{}, fmt.Errorf("bridge error %d: %s", r.Error.Type, r.Error.Description)
	case r.Success == nil:
		return BridgeCredentials{}, fmt.Errorf("unexpected pair response: no success or error")
	default:
		return BridgeCredentials{Username: r.Success.Username, Clientkey: r.Success.Clientkey}, nil
	}
}

// EntertainmentArea is a Hue entertainment configuration.
type EntertainmentArea struct {
	ID         string
	Name       string
	Type       string
	Status     string
	ChannelIDs []uint8
	Lights     int
}

func (a EntertainmentArea) String() string {
	return fmt.Sprintf("%s (%d channels, %d lights)", a.Name, len(a.ChannelIDs), a.Lights)
}

// Areas lists the bridge's entertainment configurations.
func (b hueBridge) Areas(ctx context.Context) ([]EntertainmentArea, error) {
	resp, err := b.do(ctx, http.MethodGet, "/clip/v2/resource/entertainment_configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching entertainment areas: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	var result struct {
		Data []struct {
			ID       string `json:"id"`
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			ConfigurationType string `json:"configuration_type"`
			Status            string `json:"status"`
			Channels          []struct {
				ChannelID uint8 `json:"channel_id"`
			} `json:"channels"`
			LightServices []json.RawMessage `json:"light_services"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding entertainment response: %w", err)
	}

	areas := make([]EntertainmentArea, len(result.Data))
	for i, d := range result.Data {
		ids := make([]uint8, len(d.Channels))
		for j, ch := range d.Channels {
			ids[j] = ch.ChannelID
		}
		areas[i] = EntertainmentArea{
			ID:         d.ID,
			Name:       d.Metadata.Name,
			Type:       d.ConfigurationType,
			Status:     d.Status,
			ChannelIDs: ids,
			Lights:     len(d.LightServices),
		}
	}
	return areas, nil
}

// Area returns the entertainment configuration with the given ID.
func (b hueBridge) Area(ctx context.Context, id string) (EntertainmentArea, error) {
	areas, err := b.Areas(ctx)
	if err != nil {
		return EntertainmentArea{}, err
	}
	for _, a := range areas {
		if a.ID == id {
			return a, nil
		}
	}
	return EntertainmentArea{}, fmt.Errorf("entertainment area %s not found on bridge", id)
}

// SetStreaming starts or stops entertainment mode for an area.
func (b hueBridge) SetStreaming(ctx context.Context, areaID string, active bool) error {
	action := "stop"
	if active {
		action = "start"
	}
	body := strings.NewReader(`{"action":"` + action + `"}`)
	resp, err := b.do(ctx, http.MethodPut, "/clip/v2/resource/entertainment_configuration/"+areaID, body)
	if err != nil {
		return fmt.Errorf("%s entertainment area: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s entertainment area: HTTP %d", action, resp.StatusCode)
	}
	return nil
}

func (b hueBridge) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, bridgeURL(b.host, path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.username != "" {
		req.Header.Set("hue-application-key", b.username)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return hueHTTP.Do(req)
}

func bridgeURL(host, path string) string {
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	return "https://" + host + path
}
