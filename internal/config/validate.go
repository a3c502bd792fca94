package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var validCodecs = map[string]bool{
	"h264": true,
	"vp8":  true,
	"vp9":  true,
	"av1":  true,
}

var validQualities = map[string]bool{
	"auto":   true,
	"low":    true,
	"medium": true,
	"high":   true,
	"ultra":  true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validSinks = map[string]bool{
	"noop": true,
	"file": true,
	"s3":   true,
}

// ValidationResult splits config problems into fatals, which block startup,
// and warnings, which are logged and otherwise ignored.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just want
// a flat list to print.
func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config and returns all problems found. Values
// that would otherwise cause a panic or silent misbehavior downstream
// (bad URL scheme, control characters in the password, unusable intervals)
// are either fatal or clamped to a safe default with a warning.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.SignallerURL != "" {
		u, err := url.Parse(c.SignallerURL)
		if err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("signaller_url %q is not a valid URL: %w", c.SignallerURL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			result.Fatals = append(result.Fatals, fmt.Errorf("signaller_url scheme must be ws or wss, got %q", u.Scheme))
		}
	} else {
		result.Fatals = append(result.Fatals, fmt.Errorf("signaller_url is required"))
	}

	if c.ViewerURL != "" {
		if _, err := url.Parse(c.ViewerURL); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("viewer_url %q is not a valid URL: %w", c.ViewerURL, err))
		}
	}

	if c.Password != "" {
		for _, r := range c.Password {
			if unicode.IsControl(r) {
				result.Fatals = append(result.Fatals, fmt.Errorf("password contains control characters"))
				break
			}
		}
	}

	if c.MaxViewers < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_viewers %d is below minimum 1, clamping", c.MaxViewers))
		c.MaxViewers = 1
	} else if c.MaxViewers > 64 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_viewers %d exceeds maximum 64, clamping", c.MaxViewers))
		c.MaxViewers = 64
	}

	if c.KeepAliveIntervalSeconds < 5 {
		result.Warnings = append(result.Warnings, fmt.Errorf("keep_alive_interval_seconds %d is below minimum 5, clamping", c.KeepAliveIntervalSeconds))
		c.KeepAliveIntervalSeconds = 5
	} else if c.KeepAliveIntervalSeconds > 300 {
		result.Warnings = append(result.Warnings, fmt.Errorf("keep_alive_interval_seconds %d exceeds maximum 300, clamping", c.KeepAliveIntervalSeconds))
		c.KeepAliveIntervalSeconds = 300
	}

	if c.AnswerTimeoutSeconds < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("answer_timeout_seconds %d is below minimum 1, clamping", c.AnswerTimeoutSeconds))
		c.AnswerTimeoutSeconds = 1
	} else if c.AnswerTimeoutSeconds > 60 {
		result.Warnings = append(result.Warnings, fmt.Errorf("answer_timeout_seconds %d exceeds maximum 60, clamping", c.AnswerTimeoutSeconds))
		c.AnswerTimeoutSeconds = 60
	}

	if c.Encoder.Codec != "" && !validCodecs[strings.ToLower(c.Encoder.Codec)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.codec %q is not recognized, leaving as configured", c.Encoder.Codec))
	}
	if c.Encoder.Quality != "" && !validQualities[strings.ToLower(c.Encoder.Quality)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.quality %q is not recognized", c.Encoder.Quality))
	}
	if c.Encoder.PixelFormat != "" && c.Encoder.PixelFormat != "rgba" && c.Encoder.PixelFormat != "bgra" {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.pixel_format %q is not valid (use rgba or bgra)", c.Encoder.PixelFormat))
	}
	if c.Encoder.Bitrate < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.bitrate %d is negative, clamping to 0", c.Encoder.Bitrate))
		c.Encoder.Bitrate = 0
	}
	if c.Encoder.MaxFPS < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.max_fps %d is below minimum 1, clamping", c.Encoder.MaxFPS))
		c.Encoder.MaxFPS = 1
	} else if c.Encoder.MaxFPS > 120 {
		result.Warnings = append(result.Warnings, fmt.Errorf("encoder.max_fps %d exceeds maximum 120, clamping", c.Encoder.MaxFPS))
		c.Encoder.MaxFPS = 120
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log.level %q is not valid (use debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log.format %q is not valid (use text or json)", c.Log.Format))
	}

	if c.Recording.Sink != "" && !validSinks[strings.ToLower(c.Recording.Sink)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("recording.sink %q is not recognized, falling back to noop", c.Recording.Sink))
	}
	if strings.ToLower(c.Recording.Sink) == "s3" && c.Recording.S3Bucket == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("recording.s3_bucket is required when recording.sink is s3"))
	}

	for _, ice := range c.ICEServers {
		switch ice.CredentialType {
		case ICECredentialTwilio, ICECredentialSignaller:
			// Resolved dynamically at connect time; urls is populated later.
			continue
		}
		if len(ice.URLs) == 0 {
			result.Warnings = append(result.Warnings, fmt.Errorf("ice_servers entry has no urls"))
			continue
		}
		for _, u := range ice.URLs {
			if _, err := url.Parse(u); err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("ice_servers entry %q is not a valid URI: %w", u, err))
			}
		}
	}

	return result
}
