package markup

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/styles"
	"github.com/zclconf/go-cty/cty"
)

// Page defaults in character cells.
const (
	DefaultPageWidth  = 60
	DefaultPageHeight = 40
)

// Block types of the document language.
const (
	BlockText          = "text"
	BlockHeading       = "heading"
	BlockFigure        = "figure"
	BlockMetadata      = "metadata"
	BlockRef           = "ref"
	BlockOutline       = "outline"
	BlockPageBreak     = "pagebreak"
	BlockSet           = "set"
	BlockContext       = "context"
	BlockCounterUpdate = "counter_update"
	BlockStateUpdate   = "state_update"
	BlockRepeat        = "repeat"
)

// Document is a loaded document. It is immutable and evaluated once per
// pass.
type Document struct {
	Sources  []*Source
	Page     PageSpec
	Initials map[string]cty.Value
	// Hash identifies the sources and the page settings.
	Hash string
}

// Source holds the content blocks of one file.
type Source struct {
	Filename string
	Nodes    []*Node
}

// PageSpec configures the page grid.
type PageSpec struct {
	Width     int
	Height    int
	Numbering string
	Footer    []*Node
}

// Node is one decoded content block.
type Node struct {
	Type     string
	Label    string
	Attrs    hcl.Attributes
	Children []*Node
	Range    hcl.Range
}

// Attr returns the expression of a named attribute.
func (n *Node) Attr(name string) (hcl.Expression, bool) {
	attr, ok := n.Attrs[name]
	if !ok {
		return nil, false
	}
	return attr.Expr, true
}

// RootStyles returns the style chain every file starts from.
func (d *Document) RootStyles() styles.Chain {
	var chain styles.Chain
	if d.Page.Numbering != "" {
		chain = chain.Set("page.numbering", cty.StringVal(d.Page.Numbering))
	}
	return chain
}

// contentBlocks lists the blocks allowed wherever content is.
var contentBlocks = []hcl.BlockHeaderSchema{
	{Type: BlockText},
	{Type: BlockHeading},
	{Type: BlockFigure},
	{Type: BlockMetadata},
	{Type: BlockRef},
	{Type: BlockOutline},
	{Type: BlockPageBreak},
	{Type: BlockSet, LabelNames: []string{"target"}},
	{Type: BlockContext},
	{Type: BlockCounterUpdate, LabelNames: []string{"key"}},
	{Type: BlockStateUpdate, LabelNames: []string{"key"}},
	{Type: BlockRepeat, LabelNames: []string{"name"}},
}

var blockAttributes = map[string][]hcl.AttributeSchema{
	BlockText: {
		{Name: "value", Required: true},
	},
	BlockHeading: {
		{Name: "body", Required: true},
		{Name: "level"},
		{Name: "label"},
		{Name: "numbering"},
		{Name: "outlined"},
	},
	BlockFigure: {
		{Name: "caption", Required: true},
		{Name: "label"},
		{Name: "numbering"},
	},
	BlockMetadata: {
		{Name: "value", Required: true},
		{Name: "label"},
	},
	BlockRef: {
		{Name: "target", Required: true},
		{Name: "supplement"},
	},
	BlockOutline: {
		{Name: "title"},
	},
	BlockCounterUpdate: {
		{Name: "set"},
		{Name: "step"},
		{Name: "fn"},
	},
	BlockStateUpdate: {
		{Name: "value"},
		{Name: "fn"},
	},
	BlockRepeat: {
		{Name: "count", Required: true},
	},
}

// containers hold nested content blocks.
var containers = map[string]bool{
	BlockContext: true,
	BlockRepeat:  true,
}

// exclusiveAttributes lists the blocks that take exactly one of a set of
// attributes.
var exclusiveAttributes = map[string][]string{
	BlockCounterUpdate: {"set", "step", "fn"},
	BlockStateUpdate:   {"value", "fn"},
}

// footerBlocks lists the blocks allowed in a page footer. Footers are
// evaluated once per page and must not add located elements.
var footerBlocks = map[string]bool{
	BlockText:    true,
	BlockSet:     true,
	BlockContext: true,
	BlockRepeat:  true,
}
