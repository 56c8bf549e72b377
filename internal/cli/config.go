package cli

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultProfile is used when --profile is not given and the config
// declares a profile with this name.
const DefaultProfile = "default"

// configSchema closes profile structs so misspelled fields are rejected.
const configSchema = `
#Profile: {
	uri:   string & !=""
	init?: [...string]
}
profiles: [string]: #Profile
`

// Profile is a named database target.
type Profile struct {
	URI  string   `json:"uri"`
	Init []string `json:"init,omitempty"`
}

// Config is the decoded profile file.
type Config struct {
	Profiles map[string]Profile `json:"profiles"`
}

// LoadConfig reads a CUE profile file:
//
//	profiles: {
//		default: uri: "file:app.db?mode=rwc"
//		scratch: {
//			uri: "file:scratch?mode=memory&cache=shared"
//			init: ["create table t(a);"]
//		}
//	}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(path, data)
}

// ParseConfig compiles data as CUE, unifies it with the profile schema and
// decodes it. filename is used in error positions only.
func ParseConfig(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config: %w", err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := &Config{Profiles: map[string]Profile{}}
	profiles := v.LookupPath(cue.ParsePath("profiles"))
	if !profiles.Exists() {
		return cfg, nil
	}
	if err := profiles.Decode(&cfg.Profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return cfg, nil
}

// Names returns the profile names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target is the database a command connects to.
type Target struct {
	URI     string
	Init    []string
	Profile string
}

// ResolveTarget combines --config, --profile and --uri.
//
// A named profile must exist. Without --profile the "default" profile is
// used if the config has one. An explicit --uri always wins over the
// profile's uri; the profile's init scripts still run.
func ResolveTarget(opts *RootOptions) (*Target, error) {
	t := &Target{}

	if opts.Config != "" {
		cfg, err := LoadConfig(opts.Config)
		if err != nil {
			return nil, err
		}

		name := opts.Profile
		if name == "" {
			name = DefaultProfile
		}
		p, ok := cfg.Profiles[name]
		switch {
		case ok:
			t.URI, t.Init, t.Profile = p.URI, p.Init, name
		case opts.Profile != "":
			return nil, fmt.Errorf("profile %q not found (have %v)", name, cfg.Names())
		}
	} else if opts.Profile != "" {
		return nil, fmt.Errorf("--profile %q needs --config", opts.Profile)
	}

	if opts.URI != "" {
		t.URI = opts.URI
	}
	return t, nil
}
