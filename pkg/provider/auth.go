package provider

import (
	"fmt"
	"net/http"
	"os"
)

// AuthKind identifies an authentication variant.
type AuthKind string

const (
	AuthNone        AuthKind = "none"
	AuthBearer      AuthKind = "bearer"
	AuthAPIKey      AuthKind = "apiKey"
	AuthEnvironment AuthKind = "environment"
	AuthAuto        AuthKind = "auto"
)

// Auth resolves and applies request credentials for a remote provider. Its
// zero value is AuthNone. Equality compares all fields; String redacts
// secret material, and the hash-relevant identity (HashKey) deliberately
// excludes secrets so debug paths never leak them.
type Auth struct {
	Kind       AuthKind
	Token      string   // bearer / apiKey literal value
	HeaderName string   // apiKey header name, e.g. "x-api-key"
	EnvVar     string   // environment variable name
	EnvVars    []string // auto: priority list of variable names to probe
}

// NoAuth returns an Auth that applies no credentials.
func NoAuth() Auth { return Auth{Kind: AuthNone} }

// BearerAuth returns an Auth that sends "Authorization: Bearer <token>".
func BearerAuth(token string) Auth { return Auth{Kind: AuthBearer, Token: token} }

// APIKeyAuth returns an Auth that sends the token under a custom header
// name.
func APIKeyAuth(token, headerName string) Auth {
	return Auth{Kind: AuthAPIKey, Token: token, HeaderName: headerName}
}

// EnvironmentAuth resolves its bearer token from an environment variable at
// apply time.
func EnvironmentAuth(envVar string) Auth { return Auth{Kind: AuthEnvironment, EnvVar: envVar} }

// AutoAuth probes each variable in order and uses the first one set, applied
// as a bearer token.
func AutoAuth(envVars ...string) Auth { return Auth{Kind: AuthAuto, EnvVars: envVars} }

// Resolve returns the credential value (or "" if none is configured/found).
func (a Auth) Resolve() string {
	switch a.Kind {
	case AuthNone:
		return ""
	case AuthBearer, AuthAPIKey:
		return a.Token
	case AuthEnvironment:
		return os.Getenv(a.EnvVar)
	case AuthAuto:
		for _, v := range a.EnvVars {
			if val := os.Getenv(v); val != "" {
				return val
			}
		}
		return ""
	default:
		return ""
	}
}

// Apply writes the resolved credential onto the request as the appropriate
// header. A no-op when the resolved value is empty.
func (a Auth) Apply(req *http.Request) {
	val := a.Resolve()
	if val == "" {
		return
	}
	switch a.Kind {
	case AuthAPIKey:
		name := a.HeaderName
		if name == "" {
			name = "x-api-key"
		}
		req.Header.Set(name, val)
	default:
		req.Header.Set("Authorization", "Bearer "+val)
	}
}

// Equal compares all fields, including secret material.
func (a Auth) Equal(other Auth) bool {
	if a.Kind != other.Kind || a.Token != other.Token || a.HeaderName != other.HeaderName || a.EnvVar != other.EnvVar {
		return false
	}
	if len(a.EnvVars) != len(other.EnvVars) {
		return false
	}
	for i := range a.EnvVars {
		if a.EnvVars[i] != other.EnvVars[i] {
			return false
		}
	}
	return true
}

// HashKey returns a value suitable for use as a map key or debug identity
// that never includes secret material: only the variant tag and header
// name (never the token itself).
func (a Auth) HashKey() string {
	return fmt.Sprintf("%s|%s", a.Kind, a.HeaderName)
}

// String redacts secret values.
func (a Auth) String() string {
	switch a.Kind {
	case AuthNone:
		return "Auth(none)"
	case AuthBearer:
		return "Auth(bearer, token=***)"
	case AuthAPIKey:
		return fmt.Sprintf("Auth(apiKey, header=%s, token=***)", a.HeaderName)
	case AuthEnvironment:
		return fmt.Sprintf("Auth(environment, var=%s)", a.EnvVar)
	case AuthAuto:
		return fmt.Sprintf("Auth(auto, vars=%v)", a.EnvVars)
	default:
		return "Auth(unknown)"
	}
}
