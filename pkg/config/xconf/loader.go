package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	// FormatYAML YAML 格式,推荐
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// Validator 配置校验钩子。返回非 nil 错误时配置被拒绝。
type Validator func(k *koanf.Koanf) error

// Loader 持有配置快照并支持校验门控的热重载。
//
// Koanf() 返回的实例是不可变快照: Reload 成功后旧指针仍可用但已过期,
// 需要最新配置时重新调用 Koanf()。
type Loader struct {
	current  atomic.Pointer[koanf.Koanf]
	reloadMu sync.Mutex

	path      string
	format    Format
	fromBytes bool

	delim    string
	tag      string
	defaults map[string]any
	validate Validator
}

// Option 配置 Loader 的可选项。
type Option func(*Loader)

// WithDelim 设置配置键分隔符,默认 "."。
func WithDelim(delim string) Option {
	return func(l *Loader) {
		if delim != "" {
			l.delim = delim
		}
	}
}

// WithTag 设置反序列化用的结构体标签,默认 "koanf"。
func WithTag(tag string) Option {
	return func(l *Loader) {
		if tag != "" {
			l.tag = tag
		}
	}
}

// WithDefaults 设置默认值,文件中的同名键覆盖默认值。
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) { l.defaults = defaults }
}

// WithValidator 设置校验钩子,对首次加载和每次重载都生效。
func WithValidator(fn Validator) Option {
	return func(l *Loader) { l.validate = fn }
}

// Load 从文件创建 Loader,按扩展名识别格式(.yaml/.yml/.json)。
func Load(path string, opts ...Option) (*Loader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	l := newLoader(path, format, false, opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := l.build(data)
	if err != nil {
		return nil, err
	}
	l.current.Store(k)
	return l, nil
}

// LoadBytes 从字节数据创建 Loader,需显式指定格式。
// 空数据产生一个只含默认值的配置。
func LoadBytes(data []byte, format Format, opts ...Option) (*Loader, error) {
	if !format.valid() {
		return nil, ErrUnsupportedFormat
	}
	l := newLoader("", format, true, opts)
	k, err := l.build(data)
	if err != nil {
		return nil, err
	}
	l.current.Store(k)
	return l, nil
}

func newLoader(path string, format Format, fromBytes bool, opts []Option) *Loader {
	l := &Loader{
		path:      path,
		format:    format,
		fromBytes: fromBytes,
		delim:     ".",
		tag:       "koanf",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// build 组装一个校验通过的 koanf 快照: 默认值在前,数据覆盖。
func (l *Loader) build(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(l.delim)
	if len(l.defaults) > 0 {
		if err := k.Load(confmap.Provider(l.defaults, l.delim), nil); err != nil {
			return nil, fmt.Errorf("%w: defaults: %w", ErrParseFailed, err)
		}
	}
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parserFor(l.format)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if l.validate != nil {
		if err := l.validate(k); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidateFailed, err)
		}
	}
	return k, nil
}

// Koanf 返回当前配置快照。
func (l *Loader) Koanf() *koanf.Koanf {
	return l.current.Load()
}

// Unmarshal 把指定路径的配置反序列化到 target,path 为空时取整个配置。
func (l *Loader) Unmarshal(path string, target any) error {
	k := l.current.Load()
	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: l.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 重新读取配置文件。解析或校验失败时保留当前快照。
// 并发调用被串行化,仅对文件来源的 Loader 有效。
func (l *Loader) Reload() error {
	if l.fromBytes {
		return ErrBytesSource
	}
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := l.build(data)
	if err != nil {
		return err
	}
	l.current.Store(k)
	return nil
}

// Path 返回配置文件路径,字节来源返回空字符串。
func (l *Loader) Path() string { return l.path }

// Format 返回配置格式。
func (l *Loader) Format() Format { return l.format }

func (f Format) valid() bool {
	switch f {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parserFor(format Format) koanf.Parser {
	if format == FormatJSON {
		return json.Parser()
	}
	return yaml.Parser()
}
