// Package xml builds, formats and queries XML trees. Trees are xmlquery
// nodes, so XPath queries work the same on built and parsed documents.
//
// Parsing goes through encoding/xml, which never fetches external
// entities.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/jwwconv/core/encoding"
)

// Document is an XML document tree.
type Document struct {
	root *xmlquery.Node
}

// Node is an element, text or attribute node.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult reports whether data is well-formed.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is one well-formedness failure.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

// FormatOptions controls indentation.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// NewDocument returns an empty document with an XML 1.0 UTF-8 declaration.
func NewDocument() *Document {
	root := &xmlquery.Node{Type: xmlquery.DocumentNode}
	decl := &xmlquery.Node{Type: xmlquery.DeclarationNode, Data: "xml"}
	xmlquery.AddAttr(decl, "version", "1.0")
	xmlquery.AddAttr(decl, "encoding", "UTF-8")
	xmlquery.AddChild(root, decl)
	return &Document{root: root}
}

// AddElement appends a top-level element. attrs alternate names and
// values.
func (d *Document) AddElement(name string, attrs ...string) *Node {
	return (&Node{node: d.root}).AddElement(name, attrs...)
}

// AddElement appends a child element. attrs alternate names and values; a
// trailing name without a value is ignored.
func (n *Node) AddElement(name string, attrs ...string) *Node {
	child := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		xmlquery.AddAttr(child, attrs[i], attrs[i+1])
	}
	xmlquery.AddChild(n.node, child)
	return &Node{node: child}
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.node.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			n.node.Attr[i].Value = value
			return
		}
	}
	xmlquery.AddAttr(n.node, name, value)
}

// AddText appends a text child.
func (n *Node) AddText(text string) {
	xmlquery.AddChild(n.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Validate checks that data is well-formed.
func Validate(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, col := decoder.InputPos()
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Line:    line,
				Column:  col,
				Message: err.Error(),
			})
			break
		}
	}

	return result
}

// Format pretty-prints XML data.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Write(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write pretty-prints the document to w.
func (d *Document) Write(w io.Writer, opts FormatOptions) error {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	var buf bytes.Buffer
	formatNode(&buf, d.root, 0, opts.Indent)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}

func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attr.Name.Local)
			w.WriteString("=\"")
			w.WriteString(encoding.EscapeXMLAttr(attr.Value))
			w.WriteString("\"")
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		writeIndent(w, depth, indent)
		w.WriteString("<")
		writeName(w, n.Prefix, n.Data)
		for _, attr := range n.Attr {
			if attr.Name.Local == "" {
				continue
			}
			w.WriteString(" ")
			writeName(w, attr.Name.Space, attr.Name.Local)
			w.WriteString("=\"")
			w.WriteString(encoding.EscapeXMLAttr(attr.Value))
			w.WriteString("\"")
		}

		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}
		w.WriteString(">")
		if hasElementChildren {
			w.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.ElementNode:
				formatNode(w, child, depth+1, indent)
			case xmlquery.TextNode:
				if strings.TrimSpace(child.Data) == "" {
					continue
				}
				if hasElementChildren {
					writeIndent(w, depth+1, indent)
				}
				w.WriteString(encoding.EscapeXMLText(child.Data))
				if hasElementChildren {
					w.WriteString("\n")
				}
			case xmlquery.CharDataNode:
				w.WriteString("<![CDATA[")
				w.WriteString(child.Data)
				w.WriteString("]]>")
			}
		}
		if hasElementChildren {
			writeIndent(w, depth, indent)
		}
		w.WriteString("</")
		writeName(w, n.Prefix, n.Data)
		w.WriteString(">\n")

	case xmlquery.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(encoding.EscapeXMLText(text))
		}

	case xmlquery.CommentNode:
		writeIndent(w, depth, indent)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
	}
}

func writeName(w *bytes.Buffer, prefix, local string) {
	if prefix != "" {
		w.WriteString(prefix)
		w.WriteString(":")
	}
	w.WriteString(local)
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst executes an XPath query and returns the first matching node,
// or nil.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}
