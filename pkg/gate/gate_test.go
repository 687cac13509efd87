package gate_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	drifterrors "github.com/go-drift/drift/pkg/errors"

	"github.com/mobitant/bestfood/pkg/gate"
	"github.com/mobitant/bestfood/pkg/gate/gatetest"
)

const (
	camera   gate.Permission = "android.permission.CAMERA"
	phone    gate.Permission = "android.permission.READ_PHONE_STATE"
	location gate.Permission = "android.permission.ACCESS_FINE_LOCATION"
)

func testConfig() gate.Config {
	return gate.Config{
		Required:  []gate.Permission{camera, phone, location},
		MinSDK:    gate.DefaultMinSDK,
		PackageID: "com.mobitant.bestfood",
		Prompt: gate.SettingsPrompt{
			Title:         "Permissions",
			Message:       "Grant them in settings",
			SettingsLabel: "Settings",
			CancelLabel:   "Cancel",
		},
		RestartMessage: "Reopen the app after granting permissions.",
	}
}

func newGate(t *testing.T, host *gatetest.Host) (*gate.Gate, *gatetest.UI) {
	t.Helper()
	ui := &gatetest.UI{}
	g, err := gate.New(testConfig(), host, ui)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, ui
}

func grantedAll() map[gate.Permission]gate.GrantState {
	return map[gate.Permission]gate.GrantState{
		camera:   gate.Granted,
		phone:    gate.Granted,
		location: gate.Granted,
	}
}

func TestStart_BelowMinSDKSkipsChecks(t *testing.T) {
	for _, sdk := range []int{1, 16, 21, 22} {
		host := &gatetest.Host{SDK: sdk}
		g, ui := newGate(t, host)

		if err := g.Start(context.Background()); err != nil {
			t.Fatalf("sdk %d: Start: %v", sdk, err)
		}
		if host.StatusCalls() != 0 {
			t.Errorf("sdk %d: Status called %d times, want 0", sdk, host.StatusCalls())
		}
		if got := ui.Calls(); !reflect.DeepEqual(got, []string{gatetest.CallOpenMain}) {
			t.Errorf("sdk %d: calls = %v, want [open_main]", sdk, got)
		}
		if g.State() != gate.StateGranted {
			t.Errorf("sdk %d: state = %s, want granted", sdk, g.State())
		}
	}
}

func TestStart_AllGrantedOpensMainWithoutRequest(t *testing.T) {
	host := &gatetest.Host{SDK: 30, Statuses: grantedAll()}
	g, ui := newGate(t, host)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(host.Requests()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
	if host.StatusCalls() != 3 {
		t.Errorf("Status calls = %d, want 3", host.StatusCalls())
	}
	if ui.Count(gatetest.CallOpenMain) != 1 {
		t.Errorf("calls = %v, want one open_main", ui.Calls())
	}
}

func TestCheckAndRequest_AllGrantedReturnsTrue(t *testing.T) {
	host := &gatetest.Host{SDK: 23, Statuses: grantedAll()}
	g, ui := newGate(t, host)

	ok, err := g.CheckAndRequest(context.Background())
	if err != nil {
		t.Fatalf("CheckAndRequest: %v", err)
	}
	if !ok {
		t.Error("expected satisfied")
	}
	if len(host.Requests()) != 0 {
		t.Error("expected no request")
	}
	if len(ui.Calls()) != 0 {
		t.Errorf("CheckAndRequest should not touch the UI, got %v", ui.Calls())
	}
}

func TestCheckAndRequest_RequestsExactlyMissingSubset(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[gate.Permission]gate.GrantState
		want     []gate.Permission
	}{
		{
			name:     "none granted",
			statuses: nil,
			want:     []gate.Permission{camera, phone, location},
		},
		{
			name:     "camera missing",
			statuses: map[gate.Permission]gate.GrantState{phone: gate.Granted, location: gate.Granted},
			want:     []gate.Permission{camera},
		},
		{
			name:     "phone and location missing",
			statuses: map[gate.Permission]gate.GrantState{camera: gate.Granted, phone: gate.Denied},
			want:     []gate.Permission{phone, location},
		},
		{
			name:     "unknown counts as missing",
			statuses: map[gate.Permission]gate.GrantState{camera: gate.Granted, phone: gate.Unknown, location: gate.Granted},
			want:     []gate.Permission{phone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &gatetest.Host{SDK: 23, Statuses: tt.statuses}
			g, ui := newGate(t, host)

			ok, err := g.CheckAndRequest(context.Background())
			if err != nil {
				t.Fatalf("CheckAndRequest: %v", err)
			}
			if ok {
				t.Fatal("expected not satisfied")
			}
			reqs := host.Requests()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(reqs))
			}
			if !reflect.DeepEqual(reqs[0].Permissions, tt.want) {
				t.Errorf("requested %v, want %v", reqs[0].Permissions, tt.want)
			}
			if reqs[0].Token.IsZero() {
				t.Error("request token is zero")
			}
			if g.Pending() != reqs[0].Token {
				t.Errorf("pending = %s, want %s", g.Pending(), reqs[0].Token)
			}
			if g.State() != gate.StateAwaitingGrant {
				t.Errorf("state = %s, want awaiting_grant", g.State())
			}
			if len(ui.Calls()) != 0 {
				t.Errorf("unexpected UI calls %v", ui.Calls())
			}
		})
	}
}

func TestCheckAndRequest_PendingRejectsSecondCheck(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, _ := newGate(t, host)

	if _, err := g.CheckAndRequest(context.Background()); err != nil {
		t.Fatalf("first CheckAndRequest: %v", err)
	}
	_, err := g.CheckAndRequest(context.Background())
	if !errors.Is(err, gate.ErrRequestPending) {
		t.Errorf("err = %v, want ErrRequestPending", err)
	}
	if len(host.Requests()) != 1 {
		t.Errorf("requests = %d, want 1", len(host.Requests()))
	}
}

func TestCheckAndRequest_StatusErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	host := &gatetest.Host{SDK: 23, StatusErr: boom}
	g, ui := newGate(t, host)

	err := g.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if len(host.Requests()) != 0 || len(ui.Calls()) != 0 {
		t.Errorf("expected no request and no UI call, got %d requests, calls %v", len(host.Requests()), ui.Calls())
	}
	if g.State() != gate.StateIdle {
		t.Errorf("state = %s, want idle", g.State())
	}
}

func TestCheckAndRequest_RequestErrorResetsToIdle(t *testing.T) {
	boom := errors.New("bridge down")
	host := &gatetest.Host{SDK: 23, RequestErr: boom}
	g, _ := newGate(t, host)

	_, err := g.CheckAndRequest(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped bridge error", err)
	}
	if g.State() != gate.StateIdle {
		t.Errorf("state = %s, want idle", g.State())
	}
	if !g.Pending().IsZero() {
		t.Error("pending token should be cleared")
	}
}

func TestStart_SDKErrorAssumesRuntimePermissions(t *testing.T) {
	old := drifterrors.DefaultHandler
	var reported []*drifterrors.DriftError
	drifterrors.SetHandler(&captureHandler{onError: func(err *drifterrors.DriftError) {
		reported = append(reported, err)
	}})
	defer drifterrors.SetHandler(old)

	host := &gatetest.Host{SDKErr: errors.New("no device channel")}
	g, _ := newGate(t, host)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(host.Requests()) != 1 {
		t.Errorf("requests = %d, want 1", len(host.Requests()))
	}
	if len(reported) != 1 || reported[0].Op != "gate.sdkInt" {
		t.Errorf("reported = %v, want one gate.sdkInt error", reported)
	}
}

func TestHandleResult_AllGrantedOpensMain(t *testing.T) {
	host := &gatetest.Host{SDK: 23, Statuses: map[gate.Permission]gate.GrantState{camera: gate.Granted}}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()

	if !g.HandleResult(gatetest.GrantAll(req)) {
		t.Fatal("result not consumed")
	}
	if got := ui.Calls(); !reflect.DeepEqual(got, []string{gatetest.CallOpenMain}) {
		t.Errorf("calls = %v, want [open_main]", got)
	}
	if g.State() != gate.StateGranted {
		t.Errorf("state = %s, want granted", g.State())
	}
	if !g.Pending().IsZero() {
		t.Error("pending token should be cleared")
	}
}

func TestHandleResult_AnyDenialShowsPrompt(t *testing.T) {
	tests := []struct {
		name    string
		granted []gate.Permission
	}{
		{"all denied", nil},
		{"one denied", []gate.Permission{camera, phone}},
		{"two denied", []gate.Permission{location}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &gatetest.Host{SDK: 23}
			g, ui := newGate(t, host)
			if err := g.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			req, _ := host.LastRequest()

			g.HandleResult(gatetest.Answer(req, tt.granted...))

			if got := ui.Calls(); !reflect.DeepEqual(got, []string{gatetest.CallPrompt}) {
				t.Errorf("calls = %v, want [prompt]", got)
			}
			if ui.Count(gatetest.CallOpenMain) != 0 {
				t.Error("main screen must not open on denial")
			}
			if prompts := ui.Prompts(); len(prompts) != 1 || prompts[0] != testConfig().Prompt {
				t.Errorf("prompts = %v", prompts)
			}
			if g.State() != gate.StateDenied {
				t.Errorf("state = %s, want denied", g.State())
			}
		})
	}
}

func TestHandleResult_EmptyResultsIgnored(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()

	if g.HandleResult(gate.ResultEvent{Token: req.Token}) {
		t.Error("empty result should not be consumed")
	}
	if len(ui.Calls()) != 0 {
		t.Errorf("calls = %v, want none", ui.Calls())
	}
	if g.State() != gate.StateAwaitingGrant {
		t.Errorf("state = %s, want awaiting_grant", g.State())
	}

	// The request is still live; a real answer afterwards is honored.
	if !g.HandleResult(gatetest.GrantAll(req)) {
		t.Error("later result should be consumed")
	}
}

func TestHandleResult_ShortResultsCountAsDenied(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()

	ev := gate.ResultEvent{
		Token: req.Token,
		Results: []gate.GrantResult{
			{Permission: camera, State: gate.Granted},
			{Permission: phone, State: gate.Granted},
		},
	}
	g.HandleResult(ev)

	if ui.Count(gatetest.CallPrompt) != 1 || ui.Count(gatetest.CallOpenMain) != 0 {
		t.Errorf("calls = %v, want prompt only", ui.Calls())
	}
}

func TestHandleResult_MatchesByIdentifierNotPosition(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()

	ev := gate.ResultEvent{
		Token: req.Token,
		Results: []gate.GrantResult{
			{Permission: location, State: gate.Granted},
			{Permission: camera, State: gate.Granted},
			{Permission: phone, State: gate.Granted},
		},
	}
	g.HandleResult(ev)

	if ui.Count(gatetest.CallOpenMain) != 1 {
		t.Errorf("calls = %v, want open_main", ui.Calls())
	}
}

func TestHandleResult_ForeignTokenIgnored(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()

	stale := gatetest.GrantAll(gate.Request{Token: gate.NewToken(), Permissions: req.Permissions})
	if g.HandleResult(stale) {
		t.Error("foreign token should not be consumed")
	}
	if len(ui.Calls()) != 0 {
		t.Errorf("calls = %v, want none", ui.Calls())
	}

	// Replaying a consumed result is ignored too.
	g.HandleResult(gatetest.GrantAll(req))
	if g.HandleResult(gatetest.GrantAll(req)) {
		t.Error("replayed result should not be consumed")
	}
	if ui.Count(gatetest.CallOpenMain) != 1 {
		t.Errorf("open_main count = %d, want 1", ui.Count(gatetest.CallOpenMain))
	}
}

func TestHandleResult_ResultDeliveredDuringRequest(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	var g *gate.Gate
	host.OnRequest = func(req gate.Request) {
		g.HandleResult(gatetest.GrantAll(req))
	}
	g, ui := newGate(t, host)

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ui.Count(gatetest.CallOpenMain) != 1 {
		t.Errorf("calls = %v, want open_main", ui.Calls())
	}
}

func TestAcceptSettings(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()
	g.HandleResult(gatetest.Answer(req))

	if err := g.AcceptSettings(context.Background()); err != nil {
		t.Fatalf("AcceptSettings: %v", err)
	}

	want := []string{gatetest.CallPrompt, gatetest.CallToast, gatetest.CallFinish, gatetest.CallOpenAppSettings}
	if got := ui.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if got := ui.Toasts(); len(got) != 1 || got[0] != testConfig().RestartMessage {
		t.Errorf("toasts = %v", got)
	}
	if got := ui.SettingsPackages(); !reflect.DeepEqual(got, []string{"com.mobitant.bestfood"}) {
		t.Errorf("settings packages = %v", got)
	}
	if ui.Count(gatetest.CallOpenMain) != 0 {
		t.Error("main screen must not open")
	}
	if g.State() != gate.StateClosed {
		t.Errorf("state = %s, want closed", g.State())
	}
}

func TestAcceptSettings_SettingsErrorReturned(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	ui := &gatetest.UI{SettingsErr: errors.New("no activity")}
	g, err := gate.New(testConfig(), host, ui)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()
	g.HandleResult(gatetest.Answer(req))

	if err := g.AcceptSettings(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if ui.Count(gatetest.CallFinish) != 1 {
		t.Error("screen should close before settings open")
	}
}

func TestDeclineSettings(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()
	g.HandleResult(gatetest.Answer(req, camera))

	if err := g.DeclineSettings(); err != nil {
		t.Fatalf("DeclineSettings: %v", err)
	}

	want := []string{gatetest.CallPrompt, gatetest.CallFinish}
	if got := ui.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if g.State() != gate.StateClosed {
		t.Errorf("state = %s, want closed", g.State())
	}
}

func TestSettingsChoiceWithoutPrompt(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)

	if err := g.DeclineSettings(); !errors.Is(err, gate.ErrNoPrompt) {
		t.Errorf("DeclineSettings err = %v, want ErrNoPrompt", err)
	}
	if err := g.AcceptSettings(context.Background()); !errors.Is(err, gate.ErrNoPrompt) {
		t.Errorf("AcceptSettings err = %v, want ErrNoPrompt", err)
	}
	if len(ui.Calls()) != 0 {
		t.Errorf("calls = %v, want none", ui.Calls())
	}

	// A prompt can only be answered once.
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()
	g.HandleResult(gatetest.Answer(req))
	if err := g.DeclineSettings(); err != nil {
		t.Fatalf("DeclineSettings: %v", err)
	}
	if err := g.AcceptSettings(context.Background()); !errors.Is(err, gate.ErrNoPrompt) {
		t.Errorf("second answer err = %v, want ErrNoPrompt", err)
	}
}

func TestCheckAndRequest_AfterGrantedIsRefused(t *testing.T) {
	host := &gatetest.Host{SDK: 23}
	g, ui := newGate(t, host)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	req, _ := host.LastRequest()
	g.HandleResult(gatetest.GrantAll(req))

	_, err := g.CheckAndRequest(context.Background())
	if !errors.Is(err, gate.ErrGateDone) {
		t.Errorf("err = %v, want ErrGateDone", err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Errorf("Start after grant: %v", err)
	}
	if n := len(host.Requests()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
	if n := ui.Count(gatetest.CallOpenMain); n != 1 {
		t.Errorf("open_main count = %d, want 1 (calls %s)", n, ui)
	}
	if g.State() != gate.StateGranted {
		t.Errorf("state = %s, want granted", g.State())
	}
}

func TestStart_AfterCloseIsNoop(t *testing.T) {
	tests := []struct {
		name   string
		answer func(g *gate.Gate) error
	}{
		{"declined", func(g *gate.Gate) error { return g.DeclineSettings() }},
		{"accepted", func(g *gate.Gate) error { return g.AcceptSettings(context.Background()) }},
		{"prompt still showing", func(g *gate.Gate) error { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &gatetest.Host{SDK: 23}
			g, ui := newGate(t, host)
			if err := g.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			req, _ := host.LastRequest()
			g.HandleResult(gatetest.Answer(req))
			if err := tt.answer(g); err != nil {
				t.Fatalf("answer: %v", err)
			}
			before := ui.Calls()
			statusCalls := host.StatusCalls()

			if err := g.Start(context.Background()); err != nil {
				t.Fatalf("second Start: %v", err)
			}
			if _, err := g.CheckAndRequest(context.Background()); !errors.Is(err, gate.ErrGateDone) {
				t.Errorf("CheckAndRequest err = %v, want ErrGateDone", err)
			}
			if got := ui.Calls(); !reflect.DeepEqual(got, before) {
				t.Errorf("calls = %v, want unchanged %v", got, before)
			}
			if ui.Count(gatetest.CallPrompt) != 1 {
				t.Errorf("prompt shown %d times, want 1", ui.Count(gatetest.CallPrompt))
			}
			if n := len(host.Requests()); n != 1 {
				t.Errorf("requests = %d, want 1", n)
			}
			if host.StatusCalls() != statusCalls {
				t.Errorf("status queried again after the decision")
			}
		})
	}
}

func TestSettingsURI(t *testing.T) {
	if got := SettingsURI("com.mobitant.bestfood"); got != "package:com.mobitant.bestfood" {
		t.Errorf("SettingsURI = %q", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*gate.Config)
	}{
		{"no permissions", func(c *gate.Config) { c.Required = nil }},
		{"duplicate", func(c *gate.Config) { c.Required = []gate.Permission{camera, camera} }},
		{"empty id", func(c *gate.Config) { c.Required = []gate.Permission{""} }},
		{"zero min sdk", func(c *gate.Config) { c.MinSDK = 0 }},
		{"no package", func(c *gate.Config) { c.PackageID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := gate.New(cfg, &gatetest.Host{}, &gatetest.UI{})
			if !errors.Is(err, gate.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := gate.New(testConfig(), nil, &gatetest.UI{}); !errors.Is(err, gate.ErrInvalidConfig) {
		t.Errorf("nil host err = %v, want ErrInvalidConfig", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok := gate.NewToken()
	if tok.IsZero() {
		t.Fatal("NewToken returned zero token")
	}
	parsed, err := gate.ParseToken(tok.String())
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed != tok {
		t.Errorf("parsed = %s, want %s", parsed, tok)
	}
	if _, err := gate.ParseToken("100"); err == nil {
		t.Error("expected error for non-uuid token")
	}
	if gate.NewToken() == tok {
		t.Error("tokens should be unique")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state gate.State
		want  string
	}{
		{gate.StateIdle, "idle"},
		{gate.StateAwaitingGrant, "awaiting_grant"},
		{gate.StateGranted, "granted"},
		{gate.StateDenied, "denied"},
		{gate.StateClosed, "closed"},
		{gate.State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

// captureHandler records reported errors. The embedded LogHandler covers the
// rest of the ErrorHandler interface.
type captureHandler struct {
	drifterrors.LogHandler
	onError func(*drifterrors.DriftError)
}

func (h *captureHandler) HandleError(err *drifterrors.DriftError) {
	if h.onError != nil {
		h.onError(err)
	}
}
