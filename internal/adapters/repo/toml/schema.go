package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int          `toml:"version"`
	Server  serverSchema `toml:"server,omitempty"`
	Voice   voiceSchema  `toml:"voice,omitempty"`
	Log     logSchema    `toml:"log,omitempty"`
	Notify  notifySchema `toml:"notify,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported settings schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type serverSchema struct {
	URL       string `toml:"url,omitempty"`
	APIKeyRef string `toml:"api_key_ref,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
}

type voiceSchema struct {
	Provider string `toml:"provider,omitempty"`
	Language string `toml:"language,omitempty"`
	Recorder string `toml:"recorder,omitempty"`
}

type logSchema struct {
	Level string `toml:"level,omitempty"`
	File  string `toml:"file,omitempty"`
}

type notifySchema struct {
	EnterDelay string `toml:"enter_delay,omitempty"`
	Display    string `toml:"display,omitempty"`
	Exit       string `toml:"exit,omitempty"`
}
