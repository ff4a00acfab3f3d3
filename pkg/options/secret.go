package options

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/utils/json"
)

// Redacted replaces a non-empty Secret wherever it is printed.
const Redacted = "[REDACTED]"

// Secret 口令类配置。打印和 JSON 序列化时只输出 Redacted，取原值须调用 Reveal。
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return Redacted
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Reveal returns the plain value for the client that needs it.
func (s Secret) Reveal() string {
	return string(s)
}

// SecretVar registers a string flag backed by a Secret. The default is not
// shown in help output.
func SecretVar(fs *pflag.FlagSet, s *Secret, name, usage string) {
	v := *s
	fs.StringVar((*string)(s), name, "", usage)
	*s = v
}

// FallbackEnv fills an empty secret from the environment variable key.
func (s *Secret) FallbackEnv(key string) {
	if *s == "" {
		*s = Secret(os.Getenv(key))
	}
}
