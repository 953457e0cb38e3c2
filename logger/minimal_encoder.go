package logger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Gruvbox Dark palette (warm, muted, easy on eyes)
const (
	colorReset    = "\x1b[0m"
	colorBold     = "\x1b[1m"
	colorFg       = "\x1b[38;5;223m"
	colorAqua     = "\x1b[38;5;108m"
	colorOrange   = "\x1b[38;5;208m"
	colorYellow   = "\x1b[38;5;214m"
	colorBlue     = "\x1b[38;5;109m"
	colorPurple   = "\x1b[38;5;175m"
	colorRed      = "\x1b[38;5;167m"
	colorRedBg    = "\x1b[48;5;88m"
	colorYellowBg = "\x1b[48;5;58m"
)

var bufferPool = buffer.NewPool()

// idFields are rendered in the ID color so item references stand out in a page of output
var idFields = map[string]bool{
	FieldItemID:          true,
	FieldItemSetID:       true,
	FieldSourceItemSetID: true,
	FieldMediaID:         true,
	FieldRunID:           true,
}

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  link.writer  Added item to item set  item_id=77 item_set_id=5"
type minimalEncoder struct {
	zapcore.Encoder // Embedded base encoder collects With() context fields
	color           bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	// Every entry key is empty so the base encoder emits only context fields
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
		}),
		color: color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		color:   enc.color,
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorAqua, ent.Time.Format("15:04:05")))

	// Level: only shown for WARN and above
	if ent.Level > zapcore.InfoLevel || ent.Level == zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorOrange, ent.LoggerName))
	}

	final.AppendString("  ")
	final.AppendString(enc.paint(colorFg, ent.Message))

	if rendered := enc.renderContext(); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	if rendered := enc.renderFields(fields); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color || s == "" {
		return s
	}
	return color + s + colorReset
}

// levelString returns bold + colored + background for WARN/ERROR
func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return enc.paint(colorBlue, "DEBUG")
	case zapcore.WarnLevel:
		return enc.paint(colorBold+colorYellowBg+colorYellow, "WARN")
	case zapcore.ErrorLevel:
		return enc.paint(colorBold+colorRedBg+colorRed, "ERROR")
	default:
		return enc.paint(colorBold+colorRedBg+colorRed, level.CapitalString())
	}
}

// renderContext renders the fields attached through With()
func (enc *minimalEncoder) renderContext() string {
	buf, err := enc.Encoder.EncodeEntry(zapcore.Entry{}, nil)
	if err != nil {
		return ""
	}
	defer buf.Free()

	var parts []string
	gjson.ParseBytes(buf.Bytes()).ForEach(func(key, value gjson.Result) bool {
		parts = append(parts, key.String()+"="+enc.paint(enc.keyColor(key.String()), value.String()))
		return true
	})
	return strings.Join(parts, " ")
}

func (enc *minimalEncoder) keyColor(key string) string {
	switch {
	case idFields[key]:
		return colorBlue
	case key == FieldError:
		return colorRed
	default:
		return colorPurple
	}
}

// renderFields renders key=value pairs in field order
func (enc *minimalEncoder) renderFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		val, ok := fieldValue(field)
		if !ok {
			continue
		}
		parts = append(parts, field.Key+"="+enc.paint(enc.keyColor(field.Key), val))
	}
	return strings.Join(parts, " ")
}

// fieldValue extracts a printable value from a zap field
func fieldValue(field zapcore.Field) (string, bool) {
	switch field.Type {
	case zapcore.StringType:
		return field.String, true
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return fmt.Sprintf("%d", field.Integer), true
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", uint64(field.Integer)), true
	case zapcore.Float64Type:
		return strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64), true
	case zapcore.Float32Type:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(field.Integer))), 'g', -1, 32), true
	case zapcore.BoolType:
		return fmt.Sprintf("%t", field.Integer == 1), true
	case zapcore.DurationType:
		return time.Duration(field.Integer).String(), true
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error(), true
		}
		return "", false
	case zapcore.SkipType:
		return "", false
	}

	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface), true
	}
	if field.String != "" {
		return field.String, true
	}
	return "", false
}
