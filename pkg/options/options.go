// Package options 定义各组件配置的公共约定：每个配置块都能注册命令行参数并自检。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every configuration block.
type IOptions interface {
	// Validate reports every problem instead of stopping at the first.
	Validate() []error
	// AddFlags registers the block's flags under the given prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Join builds a flag name prefix: Join("discovery") is "discovery." and
// Join() is "".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined == "" {
		return ""
	}
	return joined + "."
}
