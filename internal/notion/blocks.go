package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// Block types that queue nested units instead of rendering text.
const (
	BlockTypeChildPage     = notionapi.BlockType("child_page")
	BlockTypeChildDatabase = notionapi.BlockType("child_database")
)

// BlockText renders a block's own text line in a markdown-leaning plain
// format. Children are rendered separately by the loader, indented under
// their parent. Unknown block kinds render as empty and are dropped.
func BlockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return RichTextString(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return "# " + RichTextString(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		return "## " + RichTextString(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		return "### " + RichTextString(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		return "- " + RichTextString(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		return "- " + RichTextString(b.NumberedListItem.RichText)
	case *notionapi.ToDoBlock:
		box := "[ ]"
		if b.ToDo.Checked {
			box = "[x]"
		}
		return box + " " + RichTextString(b.ToDo.RichText)
	case *notionapi.ToggleBlock:
		return RichTextString(b.Toggle.RichText)
	case *notionapi.QuoteBlock:
		return "> " + RichTextString(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		return "> " + RichTextString(b.Callout.RichText)
	case *notionapi.CodeBlock:
		return "```" + b.Code.Language + "\n" + RichTextString(b.Code.RichText) + "\n```"
	case *notionapi.BookmarkBlock:
		return b.Bookmark.URL
	case *notionapi.EquationBlock:
		return b.Equation.Expression
	case *notionapi.DividerBlock:
		return "---"
	case *notionapi.TableRowBlock:
		cells := make([]string, 0, len(b.TableRow.Cells))
		for _, cell := range b.TableRow.Cells {
			cells = append(cells, RichTextString(cell))
		}
		return "| " + strings.Join(cells, " | ") + " |"
	default:
		return ""
	}
}

// ChildrenSourceID returns the block id whose children should be fetched.
// Synced blocks reference their original block's children.
func ChildrenSourceID(block notionapi.Block) string {
	if synced, ok := block.(*notionapi.SyncedBlock); ok {
		if synced.SyncedBlock.SyncedFrom != nil && synced.SyncedBlock.SyncedFrom.BlockID != "" {
			return string(synced.SyncedBlock.SyncedFrom.BlockID)
		}
	}
	return string(block.GetID())
}
