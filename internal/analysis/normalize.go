package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparseable means the model answered with something that is not the
// JSON object we asked for.
var ErrUnparseable = errors.New("unparseable model output")

type Totals struct {
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

func (t Totals) add(o Totals) Totals {
	return Totals{
		Kcal:     t.Kcal + o.Kcal,
		ProteinG: t.ProteinG + o.ProteinG,
		CarbsG:   t.CarbsG + o.CarbsG,
		FatG:     t.FatG + o.FatG,
	}
}

type Item struct {
	Name    string `json:"name"`
	Portion string `json:"portion,omitempty"`
	Totals
}

// Result is what the endpoint returns to the app.
type Result struct {
	IsFood     bool     `json:"isFood"`
	Confidence *float64 `json:"confidence,omitempty"`
	Total      *Totals  `json:"total,omitempty"`
	Items      []Item   `json:"items,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

var (
	isFoodKeys     = []string{"isFood", "is_food", "food"}
	confidenceKeys = []string{"confidence", "score"}
	totalKeys      = []string{"total", "totals", "nutrition", "summary"}
	itemsKeys      = []string{"items", "foods", "ingredients"}
	notesKeys      = []string{"notes", "note", "comment", "description"}

	kcalKeys    = []string{"kcal", "calories", "energy_kcal", "cal"}
	proteinKeys = []string{"protein_g", "protein", "proteins"}
	carbsKeys   = []string{"carbs_g", "carbs", "carbohydrates", "carbohydrates_g"}
	fatKeys     = []string{"fat_g", "fat", "fats", "total_fat"}

	nameKeys    = []string{"name", "food", "label", "item"}
	portionKeys = []string{"portion", "quantity", "serving", "amount"}
)

// Normalize parses a model reply into a Result, accepting the field names
// different prompts and models tend to produce.
func Normalize(raw string) (Result, error) {
	body := extractJSON(raw)
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var res Result
	for _, it := range pickList(m, itemsKeys...) {
		im, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name, _ := pickString(im, nameKeys...)
		if name == "" {
			continue
		}
		portion, _ := pickString(im, portionKeys...)
		res.Items = append(res.Items, Item{Name: name, Portion: portion, Totals: totalsFrom(im)})
	}

	if tm, ok := pickMap(m, totalKeys...); ok {
		t := totalsFrom(tm)
		res.Total = &t
	} else if _, ok := pickNumber(m, kcalKeys...); ok {
		t := totalsFrom(m)
		res.Total = &t
	} else if len(res.Items) > 0 {
		var t Totals
		for _, it := range res.Items {
			t = t.add(it.Totals)
		}
		res.Total = &t
	}

	if b, ok := pickBool(m, isFoodKeys...); ok {
		res.IsFood = b
	} else {
		res.IsFood = len(res.Items) > 0 || (res.Total != nil && res.Total.Kcal > 0)
	}

	if c, ok := pickNumber(m, confidenceKeys...); ok {
		if c > 1 {
			c /= 100
		}
		c = clamp(c, 0, 1)
		res.Confidence = &c
	}

	res.Notes, _ = pickString(m, notesKeys...)
	if !res.IsFood {
		res.Total, res.Items = nil, nil
	}
	return res, nil
}

// extractJSON strips code fences and any chatter around the outermost object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		return s[i : j+1]
	}
	return s
}

func totalsFrom(m map[string]any) Totals {
	var t Totals
	t.Kcal, _ = pickNumber(m, kcalKeys...)
	t.ProteinG, _ = pickNumber(m, proteinKeys...)
	t.CarbsG, _ = pickNumber(m, carbsKeys...)
	t.FatG, _ = pickNumber(m, fatKeys...)
	return t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pickNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case string:
			if f, ok := leadingNumber(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// leadingNumber reads "120", "120 kcal" or "12,5g".
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',' || (end == 0 && s[end] == '-')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func pickString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

func pickBool(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v))); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

func pickMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}

func pickList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k].([]any); ok {
			return v
		}
	}
	return nil
}
