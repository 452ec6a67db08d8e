package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 120 * time.Second // the user picks a monitor in a dialog

	sourceMonitor = uint32(1)
)

// OpenPortal asks the XDG desktop portal for a monitor stream and decodes
// it with GStreamer, scaled to width x height.
func OpenPortal(width, height int) (*Stream, error) {
	if !hasExecutable("gst-launch-1.0") {
		return nil, fmt.Errorf("gst-launch-1.0 not found")
	}

	cast, err := startScreenCast()
	if err != nil {
		return nil, fmt.Errorf("screencast portal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// ExtraFiles[0] becomes fd 3 in the child.
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", "-q",
		"pipewiresrc", fmt.Sprintf("path=%d", cast.node), "fd=3",
		"!", "videoconvert",
		"!", "videoscale",
		"!", fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", width, height),
		"!", "fdsink", "fd=1",
	)
	cmd.ExtraFiles = []*os.File{cast.remote}

	return startStream(cancel, "portal", cmd, width, height, cast.close)
}

// screenCast is a running portal session. conn must stay open for the
// session to stay alive.
type screenCast struct {
	conn   *dbus.Conn
	node   uint32
	remote *os.File
}

func (c *screenCast) close() {
	c.remote.Close()
	c.conn.Close()
}

// startScreenCast runs CreateSession, SelectSources and Start, then opens
// the PipeWire remote for the selected stream.
func startScreenCast() (cast *screenCast, err error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()
	if !conn.SupportsUnixFDs() {
		return nil, fmt.Errorf("D-Bus connection does not support Unix FD passing")
	}

	p := portalClient{
		conn:   conn,
		obj:    conn.Object(portalDest, dbus.ObjectPath(portalPath)),
		sender: senderToToken(conn.Names()[0]),
	}

	resp, err := p.request("CreateSession", "ambisync_create", func(opts map[string]dbus.Variant) []any {
		opts["session_handle_token"] = dbus.MakeVariant("ambisync_session")
		return []any{opts}
	})
	if err != nil {
		return nil, err
	}
	handle, ok := resp["session_handle"]
	if !ok {
		return nil, fmt.Errorf("CreateSession: no session_handle in response")
	}
	path, ok := handle.Value().(string)
	if !ok {
		return nil, fmt.Errorf("CreateSession: unexpected session_handle type %T", handle.Value())
	}
	session := dbus.ObjectPath(path)

	_, err = p.request("SelectSources", "ambisync_select", func(opts map[string]dbus.Variant) []any {
		opts["types"] = dbus.MakeVariant(sourceMonitor)
		opts["multiple"] = dbus.MakeVariant(false)
		return []any{session, opts}
	})
	if err != nil {
		return nil, err
	}

	resp, err = p.request("Start", "ambisync_start", func(opts map[string]dbus.Variant) []any {
		return []any{session, "", opts}
	})
	if err != nil {
		return nil, err
	}
	node, err := extractNodeID(resp)
	if err != nil {
		return nil, err
	}

	var fd dbus.UnixFD
	err = p.obj.Call(screenCastIface+".OpenPipeWireRemote", 0, session, map[string]dbus.Variant{}).Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}
	remote := os.NewFile(uintptr(fd), "pipewire-remote")
	if remote == nil {
		return nil, fmt.Errorf("invalid PipeWire fd")
	}

	return &screenCast{conn: conn, node: node, remote: remote}, nil
}

type portalClient struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	sender string
}

// request calls a ScreenCast method that answers through a Request object
// and waits for its Response signal. args builds the call arguments from
// the options map, which already carries the handle token.
func (p portalClient) request(method, token string, args func(map[string]dbus.Variant) []any) (map[string]dbus.Variant, error) {
	path := dbus.ObjectPath(fmt.Sprintf("%s/request/%s/%s", portalPath, p.sender, token))

	ch := make(chan *dbus.Signal, 1)
	p.conn.Signal(ch)
	defer p.conn.RemoveSignal(ch)
	p.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, path))

	opts := map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)}
	if call := p.obj.Call(screenCastIface+"."+method, 0, args(opts)...); call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}

	resp, err := waitForResponse(ch, path, portalTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}

// waitForResponse waits for the Response signal of the request at path.
// A non-zero response code means the user cancelled or the request failed.
func waitForResponse(ch <-chan *dbus.Signal, path dbus.ObjectPath, timeout time.Duration) (map[string]dbus.Variant, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok || sig == nil {
				return nil, fmt.Errorf("signal channel closed")
			}
			if sig.Path != path || len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("unexpected response type %T", sig.Body[1])
			}
			return results, nil
		case <-timer.C:
			return nil, fmt.Errorf("timed out waiting for portal response")
		}
	}
}

// senderToToken turns a unique bus name like ":1.42" into "1_42".
func senderToToken(sender string) string {
	return strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
}

// extractNodeID returns the PipeWire node of the first stream in a Start
// response. streams has D-Bus type a(ua{sv}).
func extractNodeID(resp map[string]dbus.Variant) (uint32, error) {
	v, ok := resp["streams"]
	if !ok {
		return 0, fmt.Errorf("no streams in Start response")
	}

	var first []any
	switch streams := v.Value().(type) {
	case [][]any:
		if len(streams) > 0 {
			first = streams[0]
		}
	case []any:
		if len(streams) > 0 {
			entry, ok := streams[0].([]any)
			if !ok {
				return 0, fmt.Errorf("unexpected stream entry type: %T", streams[0])
			}
			first = entry
		}
	default:
		return 0, fmt.Errorf("unexpected streams type: %T", v.Value())
	}
	if len(first) == 0 {
		return 0, fmt.Errorf("no streams returned")
	}

	node, ok := first[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected node ID type: %T", first[0])
	}
	return node, nil
}
