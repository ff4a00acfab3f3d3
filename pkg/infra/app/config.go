package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// configLoader merges the config file, the environment and explicit flags
// into the options struct.
type configLoader struct {
	name       string
	v          *viper.Viper
	fileLoaded bool
}

func newConfigLoader(name string) *configLoader {
	return &configLoader{name: name, v: viper.New()}
}

// searchPaths 未指定 --config 时依次查找的目录。
func (l *configLoader) searchPaths() []string {
	return []string{
		".",
		"./configs",
		filepath.Join(os.Getenv("HOME"), "."+l.name),
		"/etc/" + l.name,
	}
}

func (l *configLoader) load(fs *pflag.FlagSet, path string, target any) error {
	if err := l.readFile(path); err != nil {
		return err
	}
	l.expandEnv()

	l.v.SetEnvPrefix(EnvPrefix(l.name))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	// AutomaticEnv 只对已知的键生效，未出现在配置文件里的键需显式绑定
	fs.VisitAll(func(f *pflag.Flag) { _ = l.v.BindEnv(f.Name) })

	if target == nil {
		return nil
	}

	explicit := snapshotChanged(fs)
	if err := l.v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return explicit.restore(fs)
}

// readFile reads path, or searches for <name>.yaml. Only an explicit path
// that cannot be read is an error.
func (l *configLoader) readFile(path string) error {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName(l.name)
		l.v.SetConfigType("yaml")
		for _, dir := range l.searchPaths() {
			l.v.AddConfigPath(dir)
		}
	}

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		l.fileLoaded = true
	case path == "" && errors.As(err, &notFound):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// expandEnv substitutes environment references in string values. Unset
// variables are left as written.
func (l *configLoader) expandEnv() {
	for _, key := range l.v.AllKeys() {
		s, ok := l.v.Get(key).(string)
		if !ok {
			continue
		}
		if expanded := expandString(s); expanded != s {
			l.v.Set(key, expanded)
		}
	}
}

func expandString(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return ref
	})
}

// EnvPrefix returns the environment variable prefix for an application name.
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// changedFlags remembers flags set on the command line, since Unmarshal
// overwrites the struct fields they are bound to.
type changedFlags map[string][]string

func snapshotChanged(fs *pflag.FlagSet) changedFlags {
	out := changedFlags{}
	fs.Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			out[f.Name] = append([]string(nil), sv.GetSlice()...)
			return
		}
		v := f.Value.String()
		if f.Value.Type() == "stringToString" {
			// String renders the map as [k=v,...], Set expects k=v,...
			v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
		}
		out[f.Name] = []string{v}
	})
	return out
}

func (c changedFlags) restore(fs *pflag.FlagSet) error {
	for name, vals := range c {
		f := fs.Lookup(name)
		var err error
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			err = sv.Replace(vals)
		} else {
			err = f.Value.Set(vals[0])
		}
		if err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}
