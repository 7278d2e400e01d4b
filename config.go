package bootstrap

import (
	"errors"
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// AUTHSVC_CONNECTIONSTRINGS_IDENTITYCONNECTION.
const EnvPrefix = "AUTHSVC"

// ConfigSource is the configuration the builder reads from.
type ConfigSource interface {
	GetConnectionString(name string) string
	BindSection(name string, out any) error
	IsSet(key string) bool
}

// ViperSource is a ConfigSource backed by viper. Keys use ":" as the
// section delimiter, as in "JWTSettings:Authority".
type ViperSource struct {
	v *viper.Viper
}

var _ ConfigSource = (*ViperSource)(nil)

// NewViper returns a viper instance using the ":" key delimiter with
// environment overrides enabled.
func NewViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(":"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(
		":", "_",
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	return v
}

func NewViperSource(v *viper.Viper) *ViperSource {
	if v == nil {
		v = NewViper()
	}
	return &ViperSource{v: v}
}

// LoadConfig reads a config file. An empty path searches the working
// directory for authsvc.{yaml,json,toml}; a missing file is not an error.
func LoadConfig(path string) (*ViperSource, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("authsvc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config").
				WithTextCode(TextCodeInvalidSettings).
				WithMetadata(map[string]any{"path": path})
		}
	}
	return &ViperSource{v: v}, nil
}

// SourceFromMap builds a source from flat keys such as
// "ConnectionStrings:IdentityConnection".
func SourceFromMap(values map[string]any) *ViperSource {
	v := NewViper()
	for k, val := range values {
		v.Set(k, val)
	}
	return &ViperSource{v: v}
}

func (s *ViperSource) Viper() *viper.Viper { return s.v }

func (s *ViperSource) GetConnectionString(name string) string {
	return strings.TrimSpace(s.v.GetString("ConnectionStrings:" + name))
}

// BindSection decodes a section into out. Every field of out is bound to
// its environment variable first, so AUTHSVC_JWTSETTINGS_AUTHORITY applies
// with or without a config file. Fields that are not configured anywhere
// keep the value already in out.
func (s *ViperSource) BindSection(name string, out any) error {
	for _, key := range sectionKeys(name, out) {
		_ = s.v.BindEnv(key)
	}

	section, ok := lookupSection(s.v.AllSettings(), name)
	if !ok {
		return nil
	}

	// decode through viper to keep its weak typing and decode hooks
	tmp := viper.NewWithOptions(viper.KeyDelimiter(":"))
	if err := tmp.MergeConfigMap(map[string]any{name: section}); err != nil {
		return bindError(err, name)
	}
	if err := tmp.UnmarshalKey(name, out); err != nil {
		return bindError(err, name)
	}
	return nil
}

func bindError(err error, section string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to bind configuration section").
		WithTextCode(TextCodeInvalidSettings).
		WithMetadata(map[string]any{"section": section})
}

func lookupSection(all map[string]any, name string) (map[string]any, bool) {
	for k, v := range all {
		if strings.EqualFold(k, name) {
			section, ok := v.(map[string]any)
			return section, ok
		}
	}
	return nil, false
}

// sectionKeys lists "Section:Field" for each field of the struct out
// points to, using the mapstructure tag when present.
func sectionKeys(section string, out any) []string {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ","); tag != "" {
			if tag == "-" {
				continue
			}
			name = tag
		}
		keys = append(keys, section+":"+name)
	}
	return keys
}

func (s *ViperSource) IsSet(key string) bool {
	return s.v.IsSet(key)
}

// ConfigFileUsed returns the file the source was read from, if any.
func (s *ViperSource) ConfigFileUsed() string {
	return s.v.ConfigFileUsed()
}
