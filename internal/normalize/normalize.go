package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// summaryFields are concatenated in this order when professional_summary is an object.
var summaryFields = []string{
	"text", "summary", "content", "past_15_years", "specialist_skills",
	"recent_focus", "achievements", "target_roles",
}

// Normalize renders a suggested replacement for sectionID as display text.
// Strings pass through unchanged and nil yields "". Shapes that do not fit
// the section fall back to indented JSON; Normalize never panics.
func Normalize(raw any, sectionID string) (out string) {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	}

	defer func() {
		if r := recover(); r != nil {
			out = prettyJSON(raw)
		}
	}()

	var text string
	var ok bool
	switch ParseSection(sectionID) {
	case SectionProfessionalSummary:
		text, ok = professionalSummary(raw)
	case SectionWorkExperience:
		text, ok = workExperience(raw)
	case SectionQualificationEquivalence:
		text, ok = labelledDescription(raw, "level", "Level")
	case SectionInterests:
		text, ok = labelledDescription(raw, "name", "Name")
	case SectionProjects:
		text, ok = project(raw)
	case SectionSkills:
		text, ok = skills(raw)
	case SectionOther:
	}
	if !ok {
		return prettyJSON(raw)
	}
	return text
}

func professionalSummary(raw any) (string, bool) {
	if list, isList := raw.([]any); isList {
		parts := make([]string, 0, len(list))
		for _, el := range list {
			parts = append(parts, stringify(el))
		}
		return strings.Join(parts, " "), true
	}

	obj, isObj := raw.(map[string]any)
	if !isObj {
		return "", false
	}
	switch ps := obj["professional_summary"].(type) {
	case string:
		return ps, true
	case map[string]any:
		var parts []string
		for _, field := range summaryFields {
			if s := str(ps, field); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " "), true
		}
	}
	return "", false
}

func workExperience(raw any) (string, bool) {
	obj, isObj := raw.(map[string]any)
	if !isObj {
		return "", false
	}

	title := firstStr(obj, "title", "position")
	company := firstStr(obj, "company", "company_name")
	description := str(obj, "description")

	var blocks []string
	switch {
	case title != "" && company != "":
		blocks = append(blocks, title+" at "+company)
	case title != "":
		blocks = append(blocks, title)
	case company != "":
		blocks = append(blocks, company)
	}
	if description != "" {
		blocks = append(blocks, description)
	}

	if cats, isList := obj["responsibility_categories"].([]any); isList && len(cats) > 0 {
		var sb strings.Builder
		sb.WriteString("Key responsibilities:")
		for _, c := range cats {
			cat, isMap := c.(map[string]any)
			if !isMap {
				continue
			}
			if name := firstStr(cat, "name", "category"); name != "" {
				sb.WriteString("\n" + name + ":")
			}
			items, _ := cat["items"].([]any)
			for _, it := range items {
				var content string
				switch item := it.(type) {
				case string:
					content = item
				case map[string]any:
					content = str(item, "content")
				}
				if content != "" {
					sb.WriteString("\n• " + content)
				}
			}
		}
		blocks = append(blocks, sb.String())
	}

	if len(blocks) == 0 {
		return "", false
	}
	return strings.Join(blocks, "\n\n"), true
}

// labelledDescription renders "<label>: <field>" then the description.
func labelledDescription(raw any, field, label string) (string, bool) {
	obj, isObj := raw.(map[string]any)
	if !isObj {
		return "", false
	}
	var blocks []string
	if v := str(obj, field); v != "" {
		blocks = append(blocks, label+": "+v)
	}
	if d := str(obj, "description"); d != "" {
		blocks = append(blocks, d)
	}
	if len(blocks) == 0 {
		return "", false
	}
	return strings.Join(blocks, "\n\n"), true
}

func project(raw any) (string, bool) {
	obj, isObj := raw.(map[string]any)
	if !isObj {
		return "", false
	}
	var blocks []string
	if t := str(obj, "title"); t != "" {
		blocks = append(blocks, t)
	}
	start, end := str(obj, "start_date"), str(obj, "end_date")
	if start != "" || end != "" {
		if end == "" {
			end = "Present"
		}
		blocks = append(blocks, start+" - "+end)
	}
	if d := str(obj, "description"); d != "" {
		blocks = append(blocks, d)
	}
	if u := str(obj, "url"); u != "" {
		blocks = append(blocks, "URL: "+u)
	}
	if len(blocks) == 0 {
		return "", false
	}
	return strings.Join(blocks, "\n\n"), true
}

type skillLine struct {
	name  string
	level string
}

func skills(raw any) (string, bool) {
	list, isList := raw.([]any)
	if !isList {
		if obj, isObj := raw.(map[string]any); isObj {
			list, isList = obj["skills"].([]any)
		}
	}
	if !isList || len(list) == 0 {
		return "", false
	}

	groups := map[string][]skillLine{}
	for _, el := range list {
		sk, isMap := el.(map[string]any)
		if !isMap {
			return "", false
		}
		name := firstStr(sk, "name", "skill")
		if name == "" {
			continue
		}
		category := str(sk, "category")
		if category == "" {
			category = "Other"
		}
		groups[category] = append(groups[category], skillLine{name: name, level: firstStr(sk, "level", "proficiency")})
	}
	if len(groups) == 0 {
		return "", false
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	blocks := make([]string, 0, len(categories))
	for _, c := range categories {
		var sb strings.Builder
		sb.WriteString(c)
		for _, s := range groups[c] {
			sb.WriteString("\n  • " + s.name)
			if s.level != "" {
				sb.WriteString(" (" + s.level + ")")
			}
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n"), true
}

// str returns obj[key] as trimmed text; numbers are formatted, other types ignored.
func str(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, int, int64, json.Number:
		return fmt.Sprint(v)
	}
	return ""
}

func firstStr(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(obj, k); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// prettyJSON indents v with two spaces without HTML escaping.
func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
