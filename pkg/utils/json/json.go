// Package json 是仓库内唯一的 JSON 编解码入口，底层为 sonic。
// 快照文件、模型请求与 HTTP 响应都经由这里。sonic 在不支持 JIT 的平台上
// 自行退回 encoding/json。
package json

import (
	"io"
	"sync/atomic"

	"github.com/bytedance/sonic"
)

type engine struct{ sonic.API }

var active atomic.Pointer[engine]

func init() {
	ConfigStandardMode()
}

// ConfigStandardMode selects the encoding/json compatible behaviour: sorted
// map keys, HTML escaping and UTF-8 validation.
func ConfigStandardMode() { active.Store(&engine{sonic.ConfigStd}) }

// ConfigFastestMode trades those guarantees for speed.
func ConfigFastestMode() { active.Store(&engine{sonic.ConfigFastest}) }

func Marshal(v interface{}) ([]byte, error) {
	return active.Load().Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return active.Load().MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return active.Load().Unmarshal(data, v)
}

func NewEncoder(w io.Writer) sonic.Encoder {
	return active.Load().NewEncoder(w)
}

func NewDecoder(r io.Reader) sonic.Decoder {
	return active.Load().NewDecoder(r)
}
