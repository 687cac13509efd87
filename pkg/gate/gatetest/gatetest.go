// Package gatetest provides in-memory implementations of gate.Host and
// gate.UI for tests and simulations.
package gatetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mobitant/bestfood/pkg/gate"
)

// Host is a scripted gate.Host. The zero value reports API level 0 and
// every permission as denied.
type Host struct {
	mu sync.Mutex

	// SDK is returned by SDKInt.
	SDK int
	// SDKErr, when set, is returned by SDKInt instead of SDK.
	SDKErr error
	// Statuses maps permissions to the state Status reports.
	// Missing entries report gate.Denied.
	Statuses map[gate.Permission]gate.GrantState
	// StatusErr, when set, is returned by Status.
	StatusErr error
	// RequestErr, when set, is returned by RequestGrants.
	RequestErr error

	// OnRequest, when set, runs synchronously inside RequestGrants after
	// the request is recorded. Use it to answer the request inline.
	OnRequest func(req gate.Request)

	statusCalls int
	requests    []gate.Request
}

// SDKInt implements gate.Host.
func (h *Host) SDKInt(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SDKErr != nil {
		return 0, h.SDKErr
	}
	return h.SDK, nil
}

// Status implements gate.Host.
func (h *Host) Status(ctx context.Context, p gate.Permission) (gate.GrantState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statusCalls++
	if h.StatusErr != nil {
		return gate.Unknown, h.StatusErr
	}
	if st, ok := h.Statuses[p]; ok {
		return st, nil
	}
	return gate.Denied, nil
}

// RequestGrants implements gate.Host.
func (h *Host) RequestGrants(ctx context.Context, req gate.Request) error {
	h.mu.Lock()
	if h.RequestErr != nil {
		err := h.RequestErr
		h.mu.Unlock()
		return err
	}
	perms := make([]gate.Permission, len(req.Permissions))
	copy(perms, req.Permissions)
	h.requests = append(h.requests, gate.Request{Token: req.Token, Permissions: perms})
	onRequest := h.OnRequest
	h.mu.Unlock()

	if onRequest != nil {
		onRequest(req)
	}
	return nil
}

// StatusCalls returns how many times Status ran.
func (h *Host) StatusCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusCalls
}

// Requests returns every request issued so far.
func (h *Host) Requests() []gate.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]gate.Request, len(h.requests))
	copy(out, h.requests)
	return out
}

// LastRequest returns the most recent request and whether there was one.
func (h *Host) LastRequest() (gate.Request, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		return gate.Request{}, false
	}
	return h.requests[len(h.requests)-1], true
}

// Answer builds a result event for req where every permission in granted
// is gate.Granted and the rest gate.Denied.
func Answer(req gate.Request, granted ...gate.Permission) gate.ResultEvent {
	ok := make(map[gate.Permission]bool, len(granted))
	for _, p := range granted {
		ok[p] = true
	}
	results := make([]gate.GrantResult, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		st := gate.Denied
		if ok[p] {
			st = gate.Granted
		}
		results = append(results, gate.GrantResult{Permission: p, State: st})
	}
	return gate.ResultEvent{Token: req.Token, Results: results}
}

// GrantAll builds a result event granting every permission in req.
func GrantAll(req gate.Request) gate.ResultEvent {
	return Answer(req, req.Permissions...)
}

// Call names for UI.Calls.
const (
	CallOpenMain        = "open_main"
	CallPrompt          = "prompt"
	CallToast           = "toast"
	CallFinish          = "finish"
	CallOpenAppSettings = "open_app_settings"
)

// UI records every gate.UI call in order.
type UI struct {
	mu sync.Mutex

	// SettingsErr, when set, is returned by OpenAppSettings.
	SettingsErr error

	calls    []string
	prompts  []gate.SettingsPrompt
	toasts   []string
	packages []string
}

// OpenMain implements gate.UI.
func (u *UI) OpenMain() {
	u.record(CallOpenMain)
}

// ShowSettingsPrompt implements gate.UI.
func (u *UI) ShowSettingsPrompt(p gate.SettingsPrompt) {
	u.mu.Lock()
	u.prompts = append(u.prompts, p)
	u.calls = append(u.calls, CallPrompt)
	u.mu.Unlock()
}

// Toast implements gate.UI.
func (u *UI) Toast(message string) {
	u.mu.Lock()
	u.toasts = append(u.toasts, message)
	u.calls = append(u.calls, CallToast)
	u.mu.Unlock()
}

// Finish implements gate.UI.
func (u *UI) Finish() {
	u.record(CallFinish)
}

// OpenAppSettings implements gate.UI.
func (u *UI) OpenAppSettings(packageID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, CallOpenAppSettings)
	if u.SettingsErr != nil {
		return u.SettingsErr
	}
	u.packages = append(u.packages, packageID)
	return nil
}

func (u *UI) record(call string) {
	u.mu.Lock()
	u.calls = append(u.calls, call)
	u.mu.Unlock()
}

// Calls returns the recorded call names in order.
func (u *UI) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.calls))
	copy(out, u.calls)
	return out
}

// Count returns how many times call was recorded.
func (u *UI) Count(call string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Prompts returns the prompts shown so far.
func (u *UI) Prompts() []gate.SettingsPrompt {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]gate.SettingsPrompt, len(u.prompts))
	copy(out, u.prompts)
	return out
}

// Toasts returns the toast messages shown so far.
func (u *UI) Toasts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.toasts))
	copy(out, u.toasts)
	return out
}

// SettingsPackages returns the package ids passed to OpenAppSettings.
func (u *UI) SettingsPackages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.packages))
	copy(out, u.packages)
	return out
}

// String renders the call log, for test failure messages.
func (u *UI) String() string {
	return fmt.Sprint(u.Calls())
}
