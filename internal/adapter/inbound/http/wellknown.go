package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// Well-known paths served by the gateway (RFC 8414 / RFC 9728).
const (
	AuthorizationServerMetadataPath = "/.well-known/oauth-authorization-server"
	ProtectedResourceMetadataPath   = "/.well-known/oauth-protected-resource"
)

// authorizationServerMetadata is the RFC 8414 metadata document, derived
// from the configured issuer URL.
type authorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// protectedResourceMetadata is the RFC 9728 metadata document identifying
// this gateway as an OAuth protected resource.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// wellKnownHandler serves both metadata documents from the issuer URL.
// Clients resolve these to locate the authorization server, so the issuer
// must be the externally reachable base URL.
func wellKnownHandler(issuer string) http.Handler {
	issuer = strings.TrimRight(issuer, "/")

	authServer := authorizationServerMetadata{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/oauth/authorize",
		TokenEndpoint:         issuer + "/oauth/token",
		IntrospectionEndpoint: issuer + "/oauth/introspect",
		ResponseTypesSupported: []string{
			"code",
		},
		GrantTypesSupported: []string{
			"authorization_code",
			"client_credentials",
			"refresh_token",
		},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_basic",
			"client_secret_post",
		},
		ScopesSupported:               []string{auth.ScopeMCP, auth.ScopeRead},
		CodeChallengeMethodsSupported: []string{"S256"},
	}

	resource := protectedResourceMetadata{
		Resource:               issuer + "/mcp",
		AuthorizationServers:   []string{issuer},
		ScopesSupported:        []string{auth.ScopeMCP, auth.ScopeRead},
		BearerMethodsSupported: []string{"header"},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		var doc any
		switch r.URL.Path {
		case AuthorizationServerMetadataPath:
			doc = authServer
		case ProtectedResourceMetadataPath:
			doc = resource
		default:
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(doc)
	})
}

// resourceMetadataURL builds the absolute protected-resource metadata URL
// referenced by WWW-Authenticate challenges.
func resourceMetadataURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + ProtectedResourceMetadataPath
}
