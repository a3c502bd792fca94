package config

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type EncoderSettings struct {
	Codec          string `mapstructure:"codec"`
	Quality        string `mapstructure:"quality"`
	Bitrate        int    `mapstructure:"bitrate"`
	MaxFPS         int    `mapstructure:"max_fps"`
	PreferHardware bool   `mapstructure:"prefer_hardware"`

	// PixelFormat declares what the capture backend hands the encoder
	// ("rgba" or "bgra"); startup fails if the backend disagrees.
	PixelFormat string `mapstructure:"pixel_format"`
}

type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	RemoteURL  string `mapstructure:"remote_url"`
}

type RecordingSettings struct {
	// Sink selects where finished recordings land: "noop", "file", or "s3".
	Sink     string `mapstructure:"sink"`
	Path     string `mapstructure:"path"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// ICECredentialType selects how an ICEServer's credential is used, or where
// it needs to be fetched from before it is usable.
type ICECredentialType string

const (
	ICECredentialUnspecified ICECredentialType = "unspecified"
	ICECredentialPassword    ICECredentialType = "password"
	ICECredentialOauth       ICECredentialType = "oauth"
	// ICECredentialTwilio resolves to real TURN servers via a Twilio Network
	// Traversal Service token request, using Username/Credential as the
	// Twilio Account SID/Auth Token.
	ICECredentialTwilio ICECredentialType = "twilio"
	// ICECredentialSignaller resolves via the signalling server's own
	// ICE-server endpoint rather than a third-party REST API.
	ICECredentialSignaller ICECredentialType = "signaller"
)

// ICEServer is one entry of ice_servers. Entries with CredentialType Twilio
// or Signaller are placeholders resolved by ResolveICEServers before use.
type ICEServer struct {
	URLs           []string          `mapstructure:"urls"`
	Username       string            `mapstructure:"username"`
	Credential     string            `mapstructure:"credential"`
	CredentialType ICECredentialType `mapstructure:"credential_type"`
}

type Config struct {
	SignallerURL string      `mapstructure:"signaller_url"`
	ViewerURL    string      `mapstructure:"viewer_url"`
	Password     string      `mapstructure:"password"`
	ICEServers   []ICEServer `mapstructure:"ice_servers"`
	MaxViewers   int         `mapstructure:"max_viewers"`

	KeepAliveIntervalSeconds int `mapstructure:"keep_alive_interval_seconds"`
	AnswerTimeoutSeconds     int `mapstructure:"answer_timeout_seconds"`

	Encoder   EncoderSettings   `mapstructure:"encoder"`
	Log       LogSettings       `mapstructure:"log"`
	Recording RecordingSettings `mapstructure:"recording"`
}

func Default() *Config {
	return &Config{
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{CredentialType: ICECredentialSignaller},
		},
		MaxViewers: 8,

		KeepAliveIntervalSeconds: 30,
		AnswerTimeoutSeconds:     3,

		Encoder: EncoderSettings{
			Codec:       "h264",
			Quality:     "auto",
			Bitrate:     2_500_000,
			MaxFPS:      60,
			PixelFormat: "rgba",
		},
		Log: LogSettings{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Recording: RecordingSettings{
			Sink: "noop",
		},
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	// A fresh instance, so values SaveTo set on the global viper do not
	// override what the file says.
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("broadcaster")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SHARER")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		slog.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			slog.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("signaller_url", cfg.SignallerURL)
	viper.Set("viewer_url", cfg.ViewerURL)
	viper.Set("password", cfg.Password)
	viper.Set("ice_servers", cfg.ICEServers)
	viper.Set("max_viewers", cfg.MaxViewers)
	viper.Set("keep_alive_interval_seconds", cfg.KeepAliveIntervalSeconds)
	viper.Set("answer_timeout_seconds", cfg.AnswerTimeoutSeconds)
	viper.Set("encoder", cfg.Encoder)
	viper.Set("log", cfg.Log)
	viper.Set("recording", cfg.Recording)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "broadcaster.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains the viewer password)
	return os.Chmod(cfgPath, 0600)
}

// SignallerICEFetcher resolves ICE servers that the signalling server
// hands out dynamically, for entries configured with CredentialType
// Signaller.
type SignallerICEFetcher func(ctx context.Context) ([]ICEServer, error)

// ResolveICEServers expands an ice_servers list into its concrete form,
// fetching Twilio TURN credentials and signaller-provided servers where
// configured. Entries of any other credential type pass through unchanged.
func ResolveICEServers(ctx context.Context, servers []ICEServer, fetchFromSignaller SignallerICEFetcher) []ICEServer {
	resolved := make([]ICEServer, 0, len(servers))
	for _, s := range servers {
		switch s.CredentialType {
		case ICECredentialTwilio:
			fetched, err := fetchTwilioICEServers(ctx, s)
			if err != nil {
				slog.Error("fetch twilio ice servers", "error", err)
				continue
			}
			resolved = append(resolved, fetched...)
		case ICECredentialSignaller:
			if fetchFromSignaller == nil {
				continue
			}
			fetched, err := fetchFromSignaller(ctx)
			if err != nil {
				slog.Error("fetch signaller ice servers", "error", err)
				continue
			}
			resolved = append(resolved, fetched...)
		default:
			resolved = append(resolved, s)
		}
	}
	return resolved
}

type twilioTokenResponse struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ICEServers []struct {
		URL string `json:"url"`
	} `json:"ice_servers"`
}

// fetchTwilioICEServers requests a Network Traversal Service token from
// Twilio, using s.Username/s.Credential as the Account SID/Auth Token.
func fetchTwilioICEServers(ctx context.Context, s ICEServer) ([]ICEServer, error) {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Tokens.json", url.PathEscape(s.Username))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build twilio request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(s.Username + ":" + s.Credential))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request twilio token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twilio token request failed: %s", resp.Status)
	}

	var token twilioTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode twilio token: %w", err)
	}

	out := make([]ICEServer, 0, len(token.ICEServers))
	for _, ice := range token.ICEServers {
		out = append(out, ICEServer{
			URLs:           []string{ice.URL},
			Username:       token.Username,
			Credential:     token.Password,
			CredentialType: ICECredentialPassword,
		})
	}
	return out, nil
}

// GetDataDir returns the platform-specific data directory for the broadcaster.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Sharer", "data")
	case "darwin":
		return "/Library/Application Support/Sharer/data"
	default:
		return "/var/lib/sharer"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Sharer")
	case "darwin":
		return "/Library/Application Support/Sharer"
	default:
		return "/etc/sharer"
	}
}
