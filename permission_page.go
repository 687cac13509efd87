package main

import (
	"context"
	"log"

	"github.com/go-drift/drift/pkg/core"
	"github.com/go-drift/drift/pkg/drift"
	drifterrors "github.com/go-drift/drift/pkg/errors"
	"github.com/go-drift/drift/pkg/navigation"
	"github.com/go-drift/drift/pkg/overlay"
	"github.com/go-drift/drift/pkg/theme"
	"github.com/go-drift/drift/pkg/widgets"

	"github.com/mobitant/bestfood/internal/config"
	"github.com/mobitant/bestfood/internal/device"
	"github.com/mobitant/bestfood/pkg/gate"
)

// Status lines shown under the spinner.
const (
	statusChecking = "Checking permissions..."
	statusWaiting  = "Waiting for permission response..."
)

// UI-thread and background hooks of the page. Tests swap them to step the
// page deterministically.
var (
	uiDispatch = drift.Dispatch
	goAsync    = func(fn func()) { go fn() }
)

// permissionPage is the startup screen. It asks for every required
// permission that is not yet granted and moves on to the index page, or
// offers to open the app settings when something was denied.
type permissionPage struct{}

func (p permissionPage) CreateElement() core.Element {
	return core.NewStatefulElement(p, nil)
}

func (p permissionPage) Key() any {
	return nil
}

func (p permissionPage) CreateState() core.State {
	return &permissionPageState{}
}

type permissionPageState struct {
	core.StateBase
	gate     *gate.Gate
	buildCtx core.BuildContext
	status   string
	failed   bool
}

func (s *permissionPageState) InitState() {
	s.status = statusChecking

	resolved, err := config.FromBytes(driftYAML)
	if err != nil {
		s.failed = true
		s.status = err.Error()
		return
	}

	host := device.NewHost()
	ui := &pageUI{
		device:   host,
		dispatch: uiDispatch,
		navigate: s.navigate,
		prompt:   s.showSettingsPrompt,
	}
	g, err := gate.New(resolved.Gate(), host, ui)
	if err != nil {
		s.failed = true
		s.status = err.Error()
		return
	}
	s.gate = g

	s.OnDispose(host.Listen(func(ev gate.ResultEvent) {
		uiDispatch(func() {
			g.HandleResult(ev)
		})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.OnDispose(cancel)

	goAsync(func() {
		if err := g.Start(ctx); err != nil {
			uiDispatch(func() {
				s.fail(err)
			})
			return
		}
		uiDispatch(s.awaitResponse)
	})
}

// awaitResponse shows the waiting status while the request is still open.
// The result, and the prompt it raises, may already have been handled.
func (s *permissionPageState) awaitResponse() {
	if s.gate.State() == gate.StateAwaitingGrant {
		s.setStatus(statusWaiting)
	}
}

func (s *permissionPageState) Build(ctx core.BuildContext) core.Widget {
	s.buildCtx = ctx
	_, colors, textTheme := theme.UseTheme(ctx)

	var content core.Widget
	if s.failed {
		style := textTheme.BodyMedium
		style.Color = colors.Error
		content = theme.TextOf(ctx, s.status, style)
	} else {
		content = widgets.ColumnOf(
			widgets.MainAxisAlignmentCenter,
			widgets.CrossAxisAlignmentCenter,
			widgets.MainAxisSizeMin,
			theme.CircularProgressIndicatorOf(ctx, nil),
			widgets.VSpace(24),
			theme.TextOf(ctx, s.status, textTheme.BodyMedium),
		)
	}

	return widgets.Container{
		Color:       colors.Background,
		ChildWidget: widgets.Centered(content),
	}
}

func (s *permissionPageState) setStatus(status string) {
	if s.IsDisposed() {
		return
	}
	s.SetState(func() {
		s.status = status
	})
}

func (s *permissionPageState) fail(err error) {
	drifterrors.Report(&drifterrors.DriftError{
		Op:   "permissionPage.start",
		Kind: drifterrors.KindPlatform,
		Err:  err,
	})
	if s.IsDisposed() {
		return
	}
	s.SetState(func() {
		s.failed = true
		s.status = err.Error()
	})
}

func (s *permissionPageState) navigate(route string) {
	if s.IsDisposed() || s.buildCtx == nil {
		return
	}
	nav := navigation.NavigatorOf(s.buildCtx)
	if nav == nil {
		nav = navigation.RootNavigator()
	}
	if nav == nil {
		log.Printf("permission page: no navigator for %s", route)
		return
	}
	nav.PushReplacementNamed(route, nil)
}

func (s *permissionPageState) showSettingsPrompt(p gate.SettingsPrompt) {
	if s.IsDisposed() || s.buildCtx == nil {
		return
	}
	g := s.gate
	s.setStatus(p.Message)
	overlay.ShowAlertDialog(s.buildCtx, overlay.AlertDialogOptions{
		Title:        p.Title,
		Content:      p.Message,
		ConfirmLabel: p.SettingsLabel,
		OnConfirm: func() {
			// Settings are opened off the UI thread; the activity finishes
			// before they appear.
			goAsync(func() {
				if err := g.AcceptSettings(context.Background()); err != nil {
					reportDeviceError("permissionPage.acceptSettings", err)
				}
			})
		},
		CancelLabel: p.CancelLabel,
		OnCancel: func() {
			if err := g.DeclineSettings(); err != nil {
				log.Printf("permission page: %v", err)
			}
		},
		Persistent: true,
	})
}
