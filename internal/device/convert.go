package device

import (
	"fmt"
	"math"

	"github.com/mobitant/bestfood/pkg/gate"
)

// Android's PackageManager grant codes.
const (
	permissionGrantedCode = 0
	permissionDeniedCode  = -1
)

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return wholeNumber(float64(n))
	case float64:
		return wholeNumber(n)
	default:
		return 0, false
	}
}

// wholeNumber accepts floats without a fractional part; the JSON codec
// decodes every number as float64.
func wholeNumber(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func parseMap(value any) map[string]any {
	if value == nil {
		return nil
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	if m, ok := value.(map[any]any); ok {
		converted := make(map[string]any, len(m))
		for key, val := range m {
			if keyString, ok := key.(string); ok {
				converted[keyString] = val
			}
		}
		return converted
	}
	return nil
}

func parseList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// parseGrantState accepts the string states used on the channel as well as
// raw PackageManager codes.
func parseGrantState(value any) gate.GrantState {
	if n, ok := toInt(value); ok {
		switch n {
		case permissionGrantedCode:
			return gate.Granted
		case permissionDeniedCode:
			return gate.Denied
		default:
			return gate.Unknown
		}
	}
	switch gate.GrantState(parseString(value)) {
	case gate.Granted:
		return gate.Granted
	case gate.Denied, "permanently_denied", "restricted":
		return gate.Denied
	default:
		return gate.Unknown
	}
}

func parseStatus(result any) gate.GrantState {
	m := parseMap(result)
	if m == nil {
		return gate.Unknown
	}
	return parseGrantState(m["status"])
}

// parseResultEvent decodes a results-channel event. The permissions and
// grantResults arrays are paired positionally up to the shorter one; the gate
// counts any requested permission left without a pair as denied.
func parseResultEvent(data any) (gate.ResultEvent, bool) {
	m := parseMap(data)
	if m == nil {
		return gate.ResultEvent{}, false
	}
	tok, err := gate.ParseToken(parseString(m["token"]))
	if err != nil {
		return gate.ResultEvent{}, false
	}
	perms, ok := parseList(m["permissions"])
	if !ok && m["permissions"] != nil {
		return gate.ResultEvent{}, false
	}
	grants, ok := parseList(m["grantResults"])
	if !ok && m["grantResults"] != nil {
		return gate.ResultEvent{}, false
	}

	n := min(len(perms), len(grants))
	results := make([]gate.GrantResult, 0, n)
	for i := 0; i < n; i++ {
		id := parseString(perms[i])
		if id == "" {
			continue
		}
		results = append(results, gate.GrantResult{
			Permission: gate.Permission(id),
			State:      parseGrantState(grants[i]),
		})
	}
	return gate.ResultEvent{Token: tok, Results: results}, true
}
