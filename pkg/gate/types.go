package gate

import (
	"context"

	"github.com/google/uuid"
)

// Permission identifies a runtime capability the host OS can grant,
// for example "android.permission.CAMERA".
type Permission string

// GrantState is the host-reported state of a single permission.
type GrantState string

// Grant state constants.
const (
	// Granted indicates the permission is currently allowed.
	Granted GrantState = "granted"

	// Denied indicates the user refused the permission or never granted it.
	Denied GrantState = "denied"

	// Unknown indicates the host answered with something unparsable.
	// The gate treats it as not granted.
	Unknown GrantState = "unknown"
)

// RequestCode is the Android request code sent with every batch. Results
// are matched by token, never by this code.
const RequestCode = 100

// SettingsURI returns the data reference that scopes the OS settings screen
// to packageID.
func SettingsURI(packageID string) string {
	return "package:" + packageID
}

// Token identifies one batched grant request. Result events are matched to
// the pending request by token.
type Token struct {
	id uuid.UUID
}

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token{id: uuid.New()}
}

// ParseToken parses the string form produced by Token.String.
func ParseToken(s string) (Token, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Token{}, err
	}
	return Token{id: id}, nil
}

// String returns the canonical string form of the token.
func (t Token) String() string {
	return t.id.String()
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t.id == uuid.Nil
}

// Request is a batched grant request for the permissions that were not
// granted at check time, in declared order.
type Request struct {
	Token       Token
	Permissions []Permission
}

// GrantResult pairs a permission with the outcome the user chose.
type GrantResult struct {
	Permission Permission
	State      GrantState
}

// ResultEvent carries the host's answer to a Request.
type ResultEvent struct {
	Token   Token
	Results []GrantResult
}

// Host is the OS capability the gate consumes.
type Host interface {
	// SDKInt returns the OS API level.
	SDKInt(ctx context.Context) (int, error)

	// Status returns the current grant state of p.
	Status(ctx context.Context, p Permission) (GrantState, error)

	// RequestGrants asks the OS to prompt for req.Permissions. It must not
	// block on the user; the outcome arrives later as a ResultEvent carrying
	// req.Token, delivered to Gate.HandleResult.
	RequestGrants(ctx context.Context, req Request) error
}

// SettingsPrompt holds the text of the dialog offering to open app settings.
type SettingsPrompt struct {
	Title         string
	Message       string
	SettingsLabel string
	CancelLabel   string
}

// UI is the screen side of the gate: navigation, dialogs and the OS
// screens the gate can launch.
type UI interface {
	// OpenMain launches the main screen and closes the gate screen.
	OpenMain()

	// ShowSettingsPrompt shows a modal dialog. The user's choice is reported
	// back through Gate.AcceptSettings or Gate.DeclineSettings.
	ShowSettingsPrompt(p SettingsPrompt)

	// Toast shows a short transient message.
	Toast(message string)

	// Finish closes the gate screen without opening anything else.
	Finish()

	// OpenAppSettings launches the OS settings screen for packageID.
	OpenAppSettings(packageID string) error
}
