package notion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
)

// PropertyValue coerces a page property into its string rendering.
// The switch covers the closed set of property kinds the index supports;
// unknown kinds degrade to a placeholder string rather than failing.
func PropertyValue(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return RichTextString(p.Title)
	case *notionapi.RichTextProperty:
		return RichTextString(p.RichText)
	case *notionapi.NumberProperty:
		return formatNumber(p.Number)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, strconv.Quote(opt.Name))
		}
		return "[" + strings.Join(names, ", ") + "]"
	case *notionapi.StatusProperty:
		return p.Status.Name
	case *notionapi.DateProperty:
		return formatDate(p.Date)
	case *notionapi.CheckboxProperty:
		return strconv.FormatBool(p.Checkbox)
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.PeopleProperty:
		refs := make([]string, 0, len(p.People))
		for _, user := range p.People {
			refs = append(refs, fmt.Sprintf("[%q, %q]", user.Object, user.ID))
		}
		return "[" + strings.Join(refs, ", ") + "]"
	case *notionapi.FilesProperty:
		names := make([]string, 0, len(p.Files))
		for _, file := range p.Files {
			names = append(names, strconv.Quote(file.Name))
		}
		return "[" + strings.Join(names, ", ") + "]"
	case *notionapi.RelationProperty:
		ids := make([]string, 0, len(p.Relation))
		for _, rel := range p.Relation {
			ids = append(ids, strconv.Quote(string(rel.ID)))
		}
		return "[" + strings.Join(ids, ", ") + "]"
	case *notionapi.RollupProperty:
		return rollupValue(p.Rollup)
	case *notionapi.UniqueIDProperty:
		prefix := ""
		if p.UniqueID.Prefix != nil {
			prefix = *p.UniqueID.Prefix
		}
		return fmt.Sprintf("%s%d", prefix, p.UniqueID.Number)
	case *notionapi.CreatedByProperty:
		return fmt.Sprintf("[%q, %q]", p.CreatedBy.Object, p.CreatedBy.ID)
	case *notionapi.LastEditedByProperty:
		return fmt.Sprintf("[%q, %q]", p.LastEditedBy.Object, p.LastEditedBy.ID)
	case *notionapi.CreatedTimeProperty:
		return p.CreatedTime.Format("2006-01-02T15:04:05.000Z07:00")
	case *notionapi.LastEditedTimeProperty:
		return p.LastEditedTime.Format("2006-01-02T15:04:05.000Z07:00")
	default:
		return fmt.Sprintf("Unsupported type: %s", prop.GetType())
	}
}

func rollupValue(rollup notionapi.Rollup) string {
	switch rollup.Type {
	case notionapi.RollupTypeNumber:
		return formatNumber(rollup.Number)
	case notionapi.RollupTypeArray:
		values := make([]string, 0, len(rollup.Array))
		for _, item := range rollup.Array {
			values = append(values, PropertyValue(item))
		}
		return "[" + strings.Join(values, ", ") + "]"
	default:
		return fmt.Sprintf("Unsupported rollup type: %s", rollup.Type)
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func formatDate(date *notionapi.DateObject) string {
	if date == nil {
		return ""
	}
	out := ""
	if date.Start != nil {
		out = date.Start.String()
	}
	if date.End != nil {
		out += " - " + date.End.String()
	}
	return out
}

// RichTextString flattens rich text into markdown-annotated plain text.
func RichTextString(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(annotate(part))
	}
	return b.String()
}

func annotate(part notionapi.RichText) string {
	text := part.PlainText
	if text == "" || part.Annotations == nil {
		return text
	}
	a := part.Annotations
	if a.Code {
		text = "`" + text + "`"
	}
	if a.Bold {
		text = "**" + text + "**"
	}
	if a.Italic {
		text = "_" + text + "_"
	}
	if a.Strikethrough {
		text = "~~" + text + "~~"
	}
	return text
}

// PageTitle returns the rendering of a page's title property, or empty.
func PageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return RichTextString(title.Title)
		}
	}
	return ""
}

// DatabaseTitle returns the rendering of a database's title, or empty.
func DatabaseTitle(db *notionapi.Database) string {
	return RichTextString(db.Title)
}

// PropertyNames returns a page's property names with the title property
// first and the rest sorted, so rendered headers are deterministic.
func PropertyNames(props notionapi.Properties) []string {
	var title string
	names := make([]string, 0, len(props))
	for name, prop := range props {
		if _, ok := prop.(*notionapi.TitleProperty); ok && title == "" {
			title = name
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if title != "" {
		return append([]string{title}, names...)
	}
	return names
}
