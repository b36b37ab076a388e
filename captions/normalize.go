package captions

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Accessor interfaces for attribute-style caption items. An item may
// implement any subset of them.
type (
	textAccessor     interface{ Text() string }
	startAccessor    interface{ Start() float64 }
	durationAccessor interface{ Duration() float64 }
)

var (
	textKeys     = []string{"text"}
	startKeys    = []string{"start"}
	durationKeys = []string{"duration", "dur"}
)

// Normalize converts upstream caption items of any supported shape into
// CaptionItem values, one per input and in the same order. Missing text
// becomes "", missing or unusable numbers become 0. It never fails: a
// malformed item yields whatever fields could be recovered.
func Normalize(raw []any) []CaptionItem {
	items := make([]CaptionItem, 0, len(raw))
	for i, r := range raw {
		items = append(items, normalizeItem(i, r))
	}
	return items
}

func normalizeItem(index int, raw any) (item CaptionItem) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{
				"index": index,
				"type":  fmt.Sprintf("%T", raw),
				"panic": rec,
			}).Warn("Recovered while normalizing caption item")
		}
		item = sanitize(item)
	}()

	switch v := raw.(type) {
	case nil:
		return CaptionItem{}
	case CaptionItem:
		return v
	case *CaptionItem:
		if v == nil {
			return CaptionItem{}
		}
		return *v
	case map[string]any:
		return CaptionItem{
			Text:     toText(lookup(v, textKeys)),
			Start:    toFloat(lookup(v, startKeys)),
			Duration: toFloat(lookup(v, durationKeys)),
		}
	case map[string]string:
		return CaptionItem{
			Text:     lookupString(v, textKeys),
			Start:    toFloat(lookupString(v, startKeys)),
			Duration: toFloat(lookupString(v, durationKeys)),
		}
	}

	item = fromStruct(raw)
	if a, ok := raw.(textAccessor); ok {
		item.Text = a.Text()
	}
	if a, ok := raw.(startAccessor); ok {
		item.Start = a.Start()
	}
	if a, ok := raw.(durationAccessor); ok {
		item.Duration = a.Duration()
	}
	return item
}

func lookup(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func lookupString(m map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return ""
}

// fromStruct reads exported Text/Start/Duration fields (or fields whose json
// tag carries those names) from a struct or pointer to struct.
func fromStruct(raw any) CaptionItem {
	var item CaptionItem

	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return item
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return item
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		value := v.Field(i).Interface()
		switch fieldKey(field) {
		case "text":
			item.Text = toText(value)
		case "start":
			item.Start = toFloat(value)
		case "duration", "dur":
			item.Duration = toFloat(value)
		}
	}
	return item
}

func fieldKey(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return strings.ToLower(name)
		}
	}
	return strings.ToLower(field.Name)
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case *float64:
		if n == nil {
			return 0
		}
		return *n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	}
	return 0
}

func sanitize(item CaptionItem) CaptionItem {
	item.Start = nonNegative(item.Start)
	item.Duration = nonNegative(item.Duration)
	return item
}

func nonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
