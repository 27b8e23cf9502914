// Package richtext flattens Jira rich text into plain text. Jira Cloud
// returns Atlassian Document Format trees; rendered fields and older
// servers return HTML strings.
package richtext

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NodeType is the "type" tag of an ADF node
type NodeType string

const (
	NodeDoc         NodeType = "doc"
	NodeParagraph   NodeType = "paragraph"
	NodeHeading     NodeType = "heading"
	NodeText        NodeType = "text"
	NodeHardBreak   NodeType = "hardBreak"
	NodeBulletList  NodeType = "bulletList"
	NodeOrderedList NodeType = "orderedList"
	NodeListItem    NodeType = "listItem"
	NodeBlockquote  NodeType = "blockquote"
	NodeCodeBlock   NodeType = "codeBlock"
	NodePanel       NodeType = "panel"
	NodeRule        NodeType = "rule"
	NodeTable       NodeType = "table"
	NodeTableRow    NodeType = "tableRow"
	NodeTableHeader NodeType = "tableHeader"
	NodeTableCell   NodeType = "tableCell"
	NodeMention     NodeType = "mention"
	NodeEmoji       NodeType = "emoji"
	NodeInlineCard  NodeType = "inlineCard"
	NodeStatus      NodeType = "status"
	NodeDate        NodeType = "date"
	NodeMediaSingle NodeType = "mediaSingle"
	NodeMediaGroup  NodeType = "mediaGroup"
	NodeExpand      NodeType = "expand"
	NodeTaskList    NodeType = "taskList"
	NodeTaskItem    NodeType = "taskItem"

	NodeLayoutSection NodeType = "layoutSection"
	NodeLayoutColumn  NodeType = "layoutColumn"
	NodeNestedExpand  NodeType = "nestedExpand"
	NodeDecisionList  NodeType = "decisionList"
	NodeDecisionItem  NodeType = "decisionItem"
	NodeBlockCard     NodeType = "blockCard"
	NodeEmbedCard     NodeType = "embedCard"
)

var blockNodes = map[NodeType]bool{
	NodeDoc:         true,
	NodeParagraph:   true,
	NodeHeading:     true,
	NodeBulletList:  true,
	NodeOrderedList: true,
	NodeListItem:    true,
	NodeBlockquote:  true,
	NodeCodeBlock:   true,
	NodePanel:       true,
	NodeRule:        true,
	NodeTable:       true,
	NodeTableRow:    true,
	NodeTableHeader: true,
	NodeTableCell:   true,
	NodeMediaSingle: true,
	NodeMediaGroup:  true,
	NodeExpand:      true,
	NodeTaskList:    true,
	NodeTaskItem:    true,

	NodeLayoutSection: true,
	NodeLayoutColumn:  true,
	NodeNestedExpand:  true,
	NodeDecisionList:  true,
	NodeDecisionItem:  true,
	NodeBlockCard:     true,
	NodeEmbedCard:     true,
}

// Mark is inline formatting. Marks are discarded when flattening.
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Node is one ADF node. Only the fields needed for text extraction are
// modelled; everything else in the payload is ignored.
type Node struct {
	Type    NodeType               `json:"type"`
	Text    string                 `json:"text,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
	Content []Node                 `json:"content,omitempty"`
}

var inlineNodes = map[NodeType]bool{
	NodeText:       true,
	NodeHardBreak:  true,
	NodeMention:    true,
	NodeEmoji:      true,
	NodeInlineCard: true,
	NodeStatus:     true,
	NodeDate:       true,
}

// IsBlock reports whether the node starts a new line when flattened
func (n *Node) IsBlock() bool {
	return blockNodes[n.Type]
}

// Known reports whether the flattener understands the node type
func (n *Node) Known() bool {
	return blockNodes[n.Type] || inlineNodes[n.Type]
}

// FromValue builds a node tree from a decoded JSON value. It returns false
// when v is not an object. Malformed children are dropped.
func FromValue(v interface{}) (*Node, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}

	node := &Node{}
	if t, ok := m["type"].(string); ok {
		node.Type = NodeType(t)
	}
	if text, ok := m["text"].(string); ok {
		node.Text = text
	}
	if attrs, ok := m["attrs"].(map[string]interface{}); ok {
		node.Attrs = attrs
	}
	if marks, ok := m["marks"].([]interface{}); ok {
		for _, raw := range marks {
			if mm, ok := raw.(map[string]interface{}); ok {
				mark := Mark{}
				mark.Type, _ = mm["type"].(string)
				mark.Attrs, _ = mm["attrs"].(map[string]interface{})
				node.Marks = append(node.Marks, mark)
			}
		}
	}
	if content, ok := m["content"].([]interface{}); ok {
		for _, raw := range content {
			if child, ok := FromValue(raw); ok {
				node.Content = append(node.Content, *child)
			}
		}
	}
	return node, true
}

// PlainText flattens the tree depth-first. Leaf text is concatenated and
// block nodes are separated by exactly one newline. Unknown node types are
// skipped together with their subtree.
func (n *Node) PlainText() string {
	if n == nil {
		return ""
	}
	f := &flattener{}
	f.walk(n)
	return f.String()
}

type flattener struct {
	b    strings.Builder
	last byte
}

func (f *flattener) write(s string) {
	if s == "" {
		return
	}
	f.b.WriteString(s)
	f.last = s[len(s)-1]
}

// newline ends the current line unless nothing has been written yet or
// the output already ends in one.
func (f *flattener) newline() {
	if f.b.Len() == 0 || f.last == '\n' {
		return
	}
	f.write("\n")
}

func (f *flattener) String() string {
	return strings.Trim(f.b.String(), "\n")
}

func (f *flattener) walk(n *Node) {
	if !n.Known() {
		return
	}

	block := n.IsBlock()
	if block {
		f.newline()
	}

	switch n.Type {
	case NodeText:
		f.write(n.Text)
	case NodeHardBreak:
		f.write("\n")
	case NodeMention, NodeStatus:
		f.write(attrString(n.Attrs, "text"))
	case NodeEmoji:
		if text := attrString(n.Attrs, "text"); text != "" {
			f.write(text)
		} else {
			f.write(attrString(n.Attrs, "shortName"))
		}
	case NodeInlineCard, NodeBlockCard, NodeEmbedCard:
		f.write(attrString(n.Attrs, "url"))
	case NodeDate:
		f.write(formatADFDate(attrString(n.Attrs, "timestamp")))
	}

	for i := range n.Content {
		f.walk(&n.Content[i])
	}

	if block {
		f.newline()
	}
}

func attrString(attrs map[string]interface{}, key string) string {
	if attrs == nil {
		return ""
	}
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// ADF dates are epoch milliseconds encoded as a string
func formatADFDate(ms string) string {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return ms
	}
	return time.UnixMilli(n).UTC().Format("2006-01-02")
}

// Flatten converts any rich text field value to plain text. ADF objects
// are walked, HTML strings are parsed, other strings pass through. Nil
// and empty trees produce "".
func Flatten(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		if LooksLikeHTML(value) {
			return HTMLText(value)
		}
		return value
	case map[string]interface{}:
		node, _ := FromValue(value)
		return node.PlainText()
	case []interface{}:
		doc := &Node{Type: NodeDoc}
		for _, raw := range value {
			if child, ok := FromValue(raw); ok {
				doc.Content = append(doc.Content, *child)
			}
		}
		return doc.PlainText()
	case float64, bool:
		return fmt.Sprint(value)
	}
	return ""
}
