package ring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AuthOptions describes the client device presented to Ring during
// authentication. OperatingSystem and HardwareID are mandatory; any other
// empty field is left out of the request.
type AuthOptions struct {
	OperatingSystem     string
	HardwareID          string
	AppBrand            string
	DeviceModel         string
	DeviceName          string
	Resolution          string
	AppVersion          string
	AppInstallationDate *time.Time
	Manufacturer        string
	DeviceType          string
	Architecture        string
	Language            string
}

// DefaultAuthOptions returns the device description used when Authenticate
// is called with nil options.
func DefaultAuthOptions() AuthOptions {
	return AuthOptions{
		OperatingSystem: "windows",
		HardwareID:      "unspecified",
		AppBrand:        "ring",
		DeviceModel:     "unspecified",
		DeviceName:      "unspecified",
		Resolution:      "800x600",
		AppVersion:      "1.3.810",
		Manufacturer:    "unspecified",
		DeviceType:      "tablet",
		Architecture:    "x64",
		Language:        "en",
	}
}

// Validate checks the mandatory fields.
func (o *AuthOptions) Validate() error {
	if o.OperatingSystem == "" {
		return ErrMissingOperatingSystem
	}
	if o.HardwareID == "" {
		return ErrMissingHardwareID
	}
	return nil
}

// formFields returns the session form body in wire order.
func (o *AuthOptions) formFields() []formField {
	fields := []formField{
		{"device[os]", o.OperatingSystem},
		{"device[hardware_id]", o.HardwareID},
	}

	add := func(key, value string) {
		if value != "" {
			fields = append(fields, formField{key, value})
		}
	}

	add("device[app_brand]", o.AppBrand)
	add("device[metadata][device_model]", o.DeviceModel)
	add("device[metadata][device_name]", o.DeviceName)
	add("device[metadata][resolution]", o.Resolution)
	add("device[metadata][app_version]", o.AppVersion)
	if o.AppInstallationDate != nil {
		// The vendor field name is misspelled; it must stay that way.
		add("device[metadata][app_instalation_date]", FormatInstallationDate(*o.AppInstallationDate))
	}
	add("device[metadata][manufacturer]", o.Manufacturer)
	add("device[metadata][device_type]", o.DeviceType)
	add("device[metadata][architecture]", o.Architecture)
	add("device[metadata][language]", o.Language)

	return fields
}

// FormatInstallationDate renders t as YYYY-MM-DD+HH%3Amm%3AssZ, the
// pre-escaped form the session endpoint expects. The wall clock of t is used
// unchanged.
func FormatInstallationDate(t time.Time) string {
	return t.Format("2006-01-02") + "+" + t.Format("15") + "%3A" + t.Format("04") + "%3A" + t.Format("05") + "Z"
}

// Authenticate opens a session with the Ring API using Basic credentials and
// stores the returned authentication token on the client, replacing any
// previous one. A nil opts uses DefaultAuthOptions.
func (c *Client) Authenticate(ctx context.Context, opts *AuthOptions) (*Session, error) {
	if opts == nil {
		defaults := DefaultAuthOptions()
		opts = &defaults
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	session, err := c.authenticate(ctx, opts)
	c.LogOperation(ctx, OperationAuthenticate, time.Since(start), err)
	return session, err
}

func (c *Client) authenticate(ctx context.Context, opts *AuthOptions) (*Session, error) {
	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, deflate")
	header.Set("X-API-LANG", "en")
	header.Set("Authorization", "Basic "+c.CredentialsEncoded())

	body, err := c.transport.formPost(ctx, c.takeOverride(OperationAuthenticate), BaseURL+"session", opts.formFields(), header, 0)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		// no body preview: a partial session payload may hold the token
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	c.setAuthenticationToken(session.Profile.AuthenticationToken)
	return &session, nil
}
