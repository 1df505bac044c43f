package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders one flat line per record. Keys listed in
// keyOrder come first, the rest follow alphabetically.
type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		rank[k] = i
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle formats the slog.Record and writes it using the configured writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	jsonOut := h.cfg.format == formatJSON

	f := fields{}
	ts := r.Time.UTC()
	f.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	f.set("level", normalizeLevel(r.Level.String()))
	if jsonOut {
		f.set("ts_unix_nano", ts.UnixNano())
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		f.add(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(prefix, a)
		return true
	})
	f.fromContext(ctx)

	if rid := f.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if jsonOut {
				f.setDefault("rid_full", rid)
			}
			f.set("rid", compact)
		}
	}
	if f.str("event") == "" {
		event := r.Message
		if event == "" {
			event = "unknown"
		}
		f.set("event", event)
	}
	if f.str("component") == "" {
		f.set("component", "app")
	}
	f.normalizeEnums()

	keys := h.orderedKeys(f)
	var line []byte
	if jsonOut {
		var err error
		if line, err = encodeJSON(f, keys); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, keys)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs returns a shallow copy of the handler enriched with attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a shallow copy of the handler with an additional group prefix.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) orderedKeys(f fields) []string {
	keys := make([]string, 0, len(f))
	for k, v := range f {
		if isEmpty(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := h.rank[keys[i]]
		rj, jok := h.rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}

// fields is the flattened record before encoding.
type fields map[string]any

func (f fields) set(key string, v any) { f[key] = v }

func (f fields) setDefault(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// add flattens groups into dotted keys.
func (f fields) add(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := convertValue(key, v); ok {
		f[k] = val
	}
}

func (f fields) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		f.setDefault("rid", rid)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		f.setDefault("update_id", id)
	}
	if id := UserIDFrom(ctx); id != 0 {
		f.setDefault("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		f.setDefault("chat_id", id)
	}
	if hid := HandlerFrom(ctx); hid != "" {
		f.setDefault("handler", hid)
	}
	if id := OrderIDFrom(ctx); id != 0 {
		f.setDefault("order_id", id)
	}
}

// normalizeEnums lowercases known status values and drops unknown outcomes.
func (f fields) normalizeEnums() {
	if s := f.str("status"); s != "" {
		if v, ok := normalizeEnum(s, knownStatus); ok {
			f["status"] = v
		}
	}
	if o := f.str("outcome"); o != "" {
		if v, ok := normalizeEnum(o, knownOutcome); ok {
			f["outcome"] = v
		} else {
			delete(f, "outcome")
		}
	}
}

func convertValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps duration attributes onto millisecond keys:
// duration -> duration_ms, startup_duration -> startup_duration_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case fmt.Stringer:
		return x.String() == ""
	}
	return false
}

func encodeJSON(f fields, keys []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(f[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeKV(f fields, keys []string) []byte {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(f[k]))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}
