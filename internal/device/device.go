// Package device binds the permission gate to the host OS through Drift
// platform channels.
//
// The Android side of these channels lives in the app's ejected platform
// project. Permission calls follow the shape of Drift's own
// "drift/permissions" channel, extended with a batched request whose answer
// arrives as one event on the results channel.
package device

import (
	"context"
	"sync"

	drifterrors "github.com/go-drift/drift/pkg/errors"
	"github.com/go-drift/drift/pkg/platform"

	"github.com/mobitant/bestfood/pkg/gate"
)

// Channel names.
const (
	PermissionsChannel = "bestfood/permissions"
	ResultsChannel     = "bestfood/permissions/results"
	DeviceChannel      = "bestfood/device"
)

// Toast durations understood by the device channel.
const (
	ToastShort = "short"
	ToastLong  = "long"
)

// Info describes the running host.
type Info struct {
	SDKInt      int
	PackageName string
}

// Host implements gate.Host over platform channels, plus the OS actions the
// gate screen needs (toast, app settings, finish).
type Host struct {
	permissions *platform.MethodChannel
	results     *platform.EventChannel
	device      *platform.MethodChannel

	infoMu sync.Mutex
	info   *Info
}

// NewHost registers the app's channels and returns a host bound to them.
func NewHost() *Host {
	return &Host{
		permissions: platform.NewMethodChannel(PermissionsChannel),
		results:     platform.NewEventChannel(ResultsChannel),
		device:      platform.NewMethodChannel(DeviceChannel),
	}
}

// Info returns the host description. A successful answer is cached.
func (h *Host) Info(ctx context.Context) (Info, error) {
	h.infoMu.Lock()
	defer h.infoMu.Unlock()
	if h.info != nil {
		return *h.info, nil
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	result, err := h.device.Invoke("getInfo", nil)
	if err != nil {
		return Info{}, err
	}
	m := parseMap(result)
	sdk, ok := toInt(m["sdkInt"])
	if !ok {
		return Info{}, &drifterrors.ParseError{
			Channel:  DeviceChannel,
			DataType: "DeviceInfo",
			Got:      result,
		}
	}
	info := Info{SDKInt: sdk, PackageName: parseString(m["packageName"])}
	h.info = &info
	return info, nil
}

// SDKInt implements gate.Host.
func (h *Host) SDKInt(ctx context.Context) (int, error) {
	info, err := h.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.SDKInt, nil
}

// Status implements gate.Host.
func (h *Host) Status(ctx context.Context, p gate.Permission) (gate.GrantState, error) {
	if err := ctx.Err(); err != nil {
		return gate.Unknown, err
	}
	result, err := h.permissions.Invoke("check", map[string]any{
		"permission": string(p),
	})
	if err != nil {
		return gate.Unknown, err
	}
	return parseStatus(result), nil
}

// RequestGrants implements gate.Host. It returns once the native side has
// accepted the request; the outcome arrives on the results channel.
func (h *Host) RequestGrants(ctx context.Context, req gate.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perms := make([]any, len(req.Permissions))
	for i, p := range req.Permissions {
		perms[i] = string(p)
	}
	_, err := h.permissions.Invoke("request", map[string]any{
		"permissions": perms,
		"token":       req.Token.String(),
		"requestCode": gate.RequestCode,
	})
	return err
}

// Listen subscribes to batched request results. Handlers run on the
// platform's event goroutine; hop to the UI thread before touching widgets.
// Returns an unsubscribe function.
func (h *Host) Listen(handler func(gate.ResultEvent)) (unsubscribe func()) {
	sub := h.results.Listen(platform.EventHandler{
		OnEvent: func(data any) {
			ev, ok := parseResultEvent(data)
			if !ok {
				drifterrors.Report(&drifterrors.DriftError{
					Op:      "device.parseResult",
					Kind:    drifterrors.KindParsing,
					Channel: ResultsChannel,
					Err: &drifterrors.ParseError{
						Channel:  ResultsChannel,
						DataType: "PermissionResult",
						Got:      data,
					},
				})
				return
			}
			handler(ev)
		},
		OnError: func(err error) {
			drifterrors.Report(&drifterrors.DriftError{
				Op:      "device.resultStream",
				Kind:    drifterrors.KindPlatform,
				Channel: ResultsChannel,
				Err:     err,
			})
		},
	})
	return sub.Cancel
}

// ShowToast displays a transient native message.
func (h *Host) ShowToast(message, duration string) error {
	if duration == "" {
		duration = ToastShort
	}
	_, err := h.device.Invoke("showToast", map[string]any{
		"message":  message,
		"duration": duration,
	})
	return err
}

// OpenAppSettings opens the OS application details screen for packageID.
// platform.OpenAppSettings always targets the running app and carries no
// package reference, so the screen is scoped here with a package: URI.
func (h *Host) OpenAppSettings(packageID string) error {
	_, err := h.device.Invoke("openAppSettings", map[string]any{
		"package": packageID,
		"uri":     gate.SettingsURI(packageID),
	})
	return err
}

// Finish closes the hosting activity.
func (h *Host) Finish() error {
	_, err := h.device.Invoke("finish", nil)
	return err
}
