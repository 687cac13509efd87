package main

import (
	drifterrors "github.com/go-drift/drift/pkg/errors"

	"github.com/mobitant/bestfood/internal/device"
	"github.com/mobitant/bestfood/pkg/gate"
)

// deviceActions is the part of the device adapter the gate screen drives.
type deviceActions interface {
	ShowToast(message, duration string) error
	OpenAppSettings(packageID string) error
	Finish() error
}

// pageUI implements gate.UI for the permission page. Widget work is hopped
// onto the UI thread through dispatch; OS actions go to the device.
type pageUI struct {
	device   deviceActions
	dispatch func(func())
	navigate func(route string)
	prompt   func(gate.SettingsPrompt)
}

func (u *pageUI) OpenMain() {
	u.dispatch(func() {
		u.navigate(routeIndex)
	})
}

func (u *pageUI) ShowSettingsPrompt(p gate.SettingsPrompt) {
	u.dispatch(func() {
		u.prompt(p)
	})
}

func (u *pageUI) Toast(message string) {
	if err := u.device.ShowToast(message, device.ToastShort); err != nil {
		reportDeviceError("permissionPage.toast", err)
	}
}

func (u *pageUI) Finish() {
	if err := u.device.Finish(); err != nil {
		reportDeviceError("permissionPage.finish", err)
	}
}

func (u *pageUI) OpenAppSettings(packageID string) error {
	return u.device.OpenAppSettings(packageID)
}

func reportDeviceError(op string, err error) {
	drifterrors.Report(&drifterrors.DriftError{
		Op:      op,
		Kind:    drifterrors.KindPlatform,
		Channel: device.DeviceChannel,
		Err:     err,
	})
}
