package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers gateway-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// public_issuer: rejects localhost issuer URLs outside dev mode.
	if err := v.RegisterValidation("public_issuer", validatePublicIssuer); err != nil {
		return fmt.Errorf("failed to register public_issuer validator: %w", err)
	}
	return nil
}

// validatePublicIssuer rejects loopback issuer URLs unless dev_mode is on.
// Clients resolve the well-known metadata against the issuer, so a
// localhost value in a deployed configuration breaks every remote client.
func validatePublicIssuer(fl validator.FieldLevel) bool {
	issuer := fl.Field().String()
	if issuer == "" {
		return true
	}

	if top := fl.Top(); top.Kind() == reflect.Ptr {
		top = top.Elem()
		if top.Kind() == reflect.Struct {
			if dev := top.FieldByName("DevMode"); dev.IsValid() && dev.Bool() {
				return true
			}
		}
	}

	u, err := url.Parse(issuer)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host != "localhost" && host != "127.0.0.1" && host != "::1"
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return c.validateTransportRequirements()
}

// validateTransportRequirements checks the fields each transport needs.
func (c *Config) validateTransportRequirements() error {
	switch c.Transport {
	case TransportStdio:
		if c.Backend.APIKey == "" {
			return errors.New("backend.api_key is required for the stdio transport")
		}
	case TransportHTTP:
		if c.OAuth.Issuer == "" {
			return errors.New("oauth.issuer is required for the http transport")
		}
		if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
			return errors.New("oauth.client_id and oauth.client_secret are required for the http transport")
		}
		if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
			return errors.New("server.tls_cert and server.tls_key must be set together")
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for one
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "public_issuer":
		return fmt.Sprintf("%s must not be a localhost URL outside dev mode", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
