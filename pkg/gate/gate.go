// Package gate implements the startup permission gate: check the required
// runtime permissions, request the missing ones in a single batch, and
// decide between the main screen and the app settings prompt once the
// result arrives.
//
// The gate knows nothing about a concrete OS. It drives a [Host] for
// permission queries and requests and a [UI] for screen transitions, so the
// same state machine runs on a device, in tests, and in the permgate
// simulator.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	drifterrors "github.com/go-drift/drift/pkg/errors"
)

// DefaultMinSDK is the first API level that requires runtime grants.
const DefaultMinSDK = 23

// Config declares what the gate requires.
type Config struct {
	// Required lists the permissions to check, in the order they are
	// checked and requested.
	Required []Permission

	// MinSDK is the API level from which runtime grants apply.
	// Hosts below it skip all checks.
	MinSDK int

	// PackageID scopes the app settings screen opened after a denial.
	PackageID string

	// Prompt is the text of the settings dialog.
	Prompt SettingsPrompt

	// RestartMessage is shown as a toast when the user heads to settings.
	RestartMessage string
}

// Validate reports whether c can drive a gate.
func (c Config) Validate() error {
	if len(c.Required) == 0 {
		return fmt.Errorf("%w: no required permissions", ErrInvalidConfig)
	}
	seen := make(map[Permission]struct{}, len(c.Required))
	for _, p := range c.Required {
		if p == "" {
			return fmt.Errorf("%w: empty permission identifier", ErrInvalidConfig)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate permission %q", ErrInvalidConfig, p)
		}
		seen[p] = struct{}{}
	}
	if c.MinSDK <= 0 {
		return fmt.Errorf("%w: min sdk must be positive (got %d)", ErrInvalidConfig, c.MinSDK)
	}
	if c.PackageID == "" {
		return fmt.Errorf("%w: empty package id", ErrInvalidConfig)
	}
	return nil
}

// State is the position of a gate in its flow.
type State int

const (
	// StateIdle is the state before any request has been issued.
	StateIdle State = iota
	// StateAwaitingGrant means a batched request is waiting for its result.
	StateAwaitingGrant
	// StateGranted means the main screen has been opened.
	StateGranted
	// StateDenied means the settings prompt is showing.
	StateDenied
	// StateClosed means the user answered the settings prompt.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingGrant:
		return "awaiting_grant"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gate runs the permission flow for one screen instance. Its methods may be
// called from any goroutine; the host and UI are never called while the
// gate's lock is held.
type Gate struct {
	cfg  Config
	host Host
	ui   UI

	mu        sync.Mutex
	state     State
	pending   Token
	requested []Permission
}

// New returns a gate in StateIdle.
func New(cfg Config, host Host, ui UI) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil || ui == nil {
		return nil, fmt.Errorf("%w: nil host or ui", ErrInvalidConfig)
	}
	required := make([]Permission, len(cfg.Required))
	copy(required, cfg.Required)
	cfg.Required = required
	return &Gate{cfg: cfg, host: host, ui: ui}, nil
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the token of the outstanding request, or the zero token.
func (g *Gate) Pending() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Start runs the entry branch of the screen. Hosts below the configured
// API level proceed straight to the main screen. Otherwise the required
// permissions are checked and, when all are held, the main screen opens;
// when some are missing, the decision is left to HandleResult.
//
// Start is a no-op once the gate has decided.
func (g *Gate) Start(ctx context.Context) error {
	if g.decided() {
		return nil
	}
	sdk, err := g.host.SDKInt(ctx)
	if err != nil {
		// Without a version signal, assume runtime grants apply.
		drifterrors.Report(&drifterrors.DriftError{
			Op:   "gate.sdkInt",
			Kind: drifterrors.KindPlatform,
			Err:  err,
		})
		sdk = g.cfg.MinSDK
	}

	if sdk < g.cfg.MinSDK {
		g.proceed()
		return nil
	}

	ok, err := g.CheckAndRequest(ctx)
	if errors.Is(err, ErrGateDone) {
		return nil
	}
	if err != nil {
		return err
	}
	if ok {
		g.proceed()
	}
	return nil
}

// CheckAndRequest queries every required permission and issues one batched
// request for those not granted. It returns true when nothing is missing.
// When it returns false a request is outstanding and the outcome belongs to
// HandleResult.
//
// A gate requests at most once per decision: after the main screen opened
// or the settings prompt showed, it returns ErrGateDone.
func (g *Gate) CheckAndRequest(ctx context.Context) (bool, error) {
	g.mu.Lock()
	err := g.checkIdleLocked()
	g.mu.Unlock()
	if err != nil {
		return false, err
	}

	var missing []Permission
	for _, p := range g.cfg.Required {
		st, err := g.host.Status(ctx, p)
		if err != nil {
			return false, fmt.Errorf("gate: status of %s: %w", p, err)
		}
		if st != Granted {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}

	req := Request{Token: NewToken(), Permissions: missing}

	// Record the token before the host sees it so a result delivered
	// before RequestGrants returns still matches.
	g.mu.Lock()
	if err := g.checkIdleLocked(); err != nil {
		g.mu.Unlock()
		return false, err
	}
	g.state = StateAwaitingGrant
	g.pending = req.Token
	g.requested = missing
	g.mu.Unlock()

	if err := g.host.RequestGrants(ctx, req); err != nil {
		g.mu.Lock()
		if g.pending == req.Token {
			g.state = StateIdle
			g.pending = Token{}
			g.requested = nil
		}
		g.mu.Unlock()
		return false, fmt.Errorf("gate: request grants: %w", err)
	}
	return false, nil
}

// HandleResult consumes the host's answer to the pending request. Events
// with no results, or for a token other than the pending one, are ignored.
// It reports whether the event was consumed.
//
// Every requested permission must be present and granted for the main
// screen to open. A permission missing from the results counts as denied.
func (g *Gate) HandleResult(ev ResultEvent) bool {
	if len(ev.Results) == 0 {
		return false
	}

	g.mu.Lock()
	if g.state != StateAwaitingGrant || ev.Token != g.pending {
		g.mu.Unlock()
		log.Printf("gate: ignoring result for request %s", ev.Token)
		return false
	}
	requested := g.requested
	g.pending = Token{}
	g.requested = nil

	granted := allGranted(requested, ev.Results)
	if granted {
		g.state = StateGranted
	} else {
		g.state = StateDenied
	}
	g.mu.Unlock()

	if granted {
		g.ui.OpenMain()
	} else {
		g.ui.ShowSettingsPrompt(g.cfg.Prompt)
	}
	return true
}

// AcceptSettings handles the settings choice of the prompt: the user is
// told to reopen the app, the screen closes, and the OS settings screen for
// this package opens.
func (g *Gate) AcceptSettings(ctx context.Context) error {
	if err := g.close(); err != nil {
		return err
	}
	if g.cfg.RestartMessage != "" {
		g.ui.Toast(g.cfg.RestartMessage)
	}
	g.ui.Finish()
	if err := g.ui.OpenAppSettings(g.cfg.PackageID); err != nil {
		return fmt.Errorf("gate: open app settings: %w", err)
	}
	return nil
}

// DeclineSettings handles the cancel choice of the prompt. The screen
// closes and nothing else is launched.
func (g *Gate) DeclineSettings() error {
	if err := g.close(); err != nil {
		return err
	}
	g.ui.Finish()
	return nil
}

func (g *Gate) close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateDenied {
		return fmt.Errorf("%w (state %s)", ErrNoPrompt, g.state)
	}
	g.state = StateClosed
	return nil
}

func (g *Gate) checkIdleLocked() error {
	switch g.state {
	case StateIdle:
		return nil
	case StateAwaitingGrant:
		return ErrRequestPending
	default:
		return fmt.Errorf("%w (state %s)", ErrGateDone, g.state)
	}
}

func (g *Gate) decided() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateGranted || g.state == StateDenied || g.state == StateClosed
}

func (g *Gate) proceed() {
	g.mu.Lock()
	if g.state == StateGranted || g.state == StateClosed {
		g.mu.Unlock()
		return
	}
	g.state = StateGranted
	g.mu.Unlock()
	g.ui.OpenMain()
}

func allGranted(requested []Permission, results []GrantResult) bool {
	got := make(map[Permission]GrantState, len(results))
	for _, r := range results {
		got[r.Permission] = r.State
	}
	for _, p := range requested {
		if got[p] != Granted {
			return false
		}
	}
	return true
}
