// Package config loads the two layers of configuration the core consumes
// as a pre-parsed object: scalar settings overridable by environment
// variables (in the teacher's getEnv/getEnvAsInt style), and the
// directive file pointed to by DISORDER_CONFIG (player/collection/
// namepart/listen/broadcast plus the same scalars).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dgnsrekt/disorder/internal/scheduler"
	"github.com/dgnsrekt/disorder/internal/store"
)

// CollectionRoot is one `collection MODULE ENCODING ROOT` directive: a
// filesystem tree of tracks, tagged with the encoding its filenames use.
type CollectionRoot struct {
	Module   string
	Encoding string
	Root     string
}

// ListenAddress is one `listen` stanza: family, address and port, or a
// local socket path when Network is "unix".
type ListenAddress struct {
	Network string // "tcp" or "unix"
	Address string
}

// BroadcastAddress is the `broadcast`/`broadcast_from` pair configuring
// the rtp sink's destination and, optionally, bind address.
type BroadcastAddress struct {
	Address           string
	From              string
	MulticastTTL      int
	MulticastLoopback bool
}

// Config is the parsed, ready-to-use configuration object: the directive
// file's structured directives plus scalar settings, any of which may
// also be supplied or overridden by environment variables.
type Config struct {
	Listen      []ListenAddress
	Broadcast   *BroadcastAddress
	Players     []scheduler.PlayerEntry
	Collections []CollectionRoot
	Nameparts   []store.NamepartRule
	Stopwords   []string

	// Scalars (spec.md §4.E/§4.F/§4.H defaults), overridable by env vars.
	HistoryLength   int           // recent/queue history retained across restarts
	PlaylistMax     int           // max entries in a stored playlist
	ReplayMin       time.Duration // chooser: minimum time before a track replays
	NewBiasAge      time.Duration // chooser: age under which new_bias applies
	NewBias         int           // chooser: extra weight for newly-added tracks
	Gap             time.Duration // scheduler: silence between tracks
	PlaylistLockTTL time.Duration // server: playlist-lock expiry
	Debug           bool
	PasswordFile    string // HOME-relative fallback, spec.md §6
	Banner          string

	// AuthSecretFile holds the server's HMAC cookie-signing key.
	AuthSecretFile string

	// State file paths (spec.md §6 "Persisted state layout").
	QueueFile    string
	ScheduleFile string

	// OutputCommand is the shell command decoded PCM is piped to when no
	// `broadcast` directive configures an rtp sink (spec §6 "command" sink).
	OutputCommand string
}

// Load builds a Config from environment-variable scalar overrides, then,
// if DISORDER_CONFIG (or the explicit path argument) names a readable
// directive file, merges its directives on top. An empty path with no
// DISORDER_CONFIG set yields scalar-only defaults, matching spec.md §6's
// "the core consumes a pre-parsed configuration object" — a directive
// file is optional, not required, for programmatic callers and tests.
func Load(path string) (*Config, error) {
	cfg := &Config{
		HistoryLength:   getEnvAsInt("DISORDER_HISTORY", 60),
		PlaylistMax:     getEnvAsInt("DISORDER_PLAYLIST_MAX", 1000),
		ReplayMin:       getEnvAsDuration("DISORDER_REPLAY_MIN", 8*time.Hour),
		NewBiasAge:      getEnvAsDuration("DISORDER_NEW_BIAS_AGE", 24*time.Hour),
		NewBias:         getEnvAsInt("DISORDER_NEW_BIAS", 4500000),
		Gap:             getEnvAsDuration("DISORDER_GAP", 2*time.Second),
		PlaylistLockTTL: getEnvAsDuration("DISORDER_PLAYLIST_LOCK_TTL", 5*time.Minute),
		Debug:           getEnvAsBool("DISORDER_DEBUG", false),
		PasswordFile:    getEnv("DISORDER_PASSWORD_FILE", defaultPasswordFile()),
		Banner:          getEnv("DISORDER_BANNER", "disorder"),
		AuthSecretFile:  getEnv("DISORDER_SECRET_FILE", ""),
		QueueFile:       getEnv("DISORDER_QUEUE_FILE", "./data/queue.json"),
		ScheduleFile:    getEnv("DISORDER_SCHEDULE_FILE", "./data/schedule.json"),
		OutputCommand:   getEnv("DISORDER_OUTPUT_COMMAND", "aplay -q -f S16_LE -r 44100 -c 2"),
	}

	if path == "" {
		path = getEnv("DISORDER_CONFIG", "")
	}
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := applyDirectives(cfg, f); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultPasswordFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.disorder/passwd"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
