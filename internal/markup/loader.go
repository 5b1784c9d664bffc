package markup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/quire/internal/ctxlog"
	"github.com/specialistvlad/quire/internal/frame"
	"github.com/zclconf/go-cty/cty"
)

// Loader reads documents from HCL files. It keeps the parsed files so that
// diagnostics can be printed with source snippets.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new document loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Files returns every file parsed so far, keyed by filename.
func (l *Loader) Files() map[string]*hcl.File {
	return l.parser.Files()
}

// pageBlock is the decoded `page` block.
type pageBlock struct {
	Width     *int         `hcl:"width,optional"`
	Height    *int         `hcl:"height,optional"`
	Numbering *string      `hcl:"numbering,optional"`
	Footer    *footerBlock `hcl:"footer,block"`
}

type footerBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// stateBlock is a decoded `state` declaration.
type stateBlock struct {
	Init hcl.Expression `hcl:"init,optional"`
}

// rootSchema extends the content blocks with the root-only blocks.
var rootSchema = &hcl.BodySchema{
	Blocks: append([]hcl.BlockHeaderSchema{
		{Type: "page"},
		{Type: "state", LabelNames: []string{"key"}},
	}, contentBlocks...),
}

// Load reads every document file under paths. A path may be a file or a
// directory; directories are searched recursively for `.hcl` files, which are
// read in lexical order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Document, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Document loader started.", "path_count", len(paths))

	files, err := findDocumentFiles(paths)
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Failed to read document",
			Detail:   err.Error(),
		}}
	}
	if len(files) == 0 {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "No document files",
			Detail:   fmt.Sprintf("No .hcl files were found in %v.", paths),
		}}
	}
	logger.Debug("Discovered document files.", "count", len(files))

	var parsed []*hcl.File
	var diags hcl.Diagnostics
	for _, file := range files {
		hclFile, parseDiags := l.parser.ParseHCLFile(file)
		diags = append(diags, parseDiags...)
		if hclFile != nil {
			parsed = append(parsed, hclFile)
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return l.build(ctx, files, parsed)
}

// LoadSource reads a document from memory.
func (l *Loader) LoadSource(ctx context.Context, filename string, src []byte) (*Document, hcl.Diagnostics) {
	hclFile, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	return l.build(ctx, []string{filename}, []*hcl.File{hclFile})
}

func (l *Loader) build(ctx context.Context, names []string, files []*hcl.File) (*Document, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)

	doc := &Document{
		Page:     PageSpec{Width: DefaultPageWidth, Height: DefaultPageHeight},
		Initials: make(map[string]cty.Value),
	}

	var diags hcl.Diagnostics
	var pageBlocks hcl.Blocks
	hash := sha256.New()

	for i, file := range files {
		// File names are left out: moving a document does not change its
		// output.
		fmt.Fprintf(hash, "file:%d:", i)
		hash.Write(file.Bytes)
		hash.Write([]byte{0})

		content, contentDiags := file.Body.Content(rootSchema)
		diags = append(diags, contentDiags...)
		if content == nil {
			continue
		}

		src := &Source{Filename: names[i]}
		for _, block := range content.Blocks {
			switch block.Type {
			case "page":
				pageBlocks = append(pageBlocks, block)
			case "state":
				diags = append(diags, decodeState(block, doc.Initials)...)
			default:
				node, nodeDiags := decodeNode(block)
				diags = append(diags, nodeDiags...)
				if node != nil {
					src.Nodes = append(src.Nodes, node)
				}
			}
		}
		doc.Sources = append(doc.Sources, src)
	}

	page, pageDiags := findUniqueBlock(pageBlocks, "page")
	diags = append(diags, pageDiags...)
	if page != nil {
		diags = append(diags, decodePage(page, &doc.Page)...)
	}
	fmt.Fprintf(hash, "page:%d:%d:%s", doc.Page.Width, doc.Page.Height, doc.Page.Numbering)
	doc.Hash = hex.EncodeToString(hash.Sum(nil))

	diags = append(diags, checkDocument(doc)...)
	if diags.HasErrors() {
		return nil, diags
	}

	logger.Debug("Document loading complete.", "files", len(doc.Sources), "states", len(doc.Initials), "hash", doc.Hash[:12])
	return doc, diags
}

// findUniqueBlock returns the only block of a given type. It reports a
// diagnostic for every duplicate.
func findUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type == name {
			if found != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"" + name + "\" block",
					Detail:   "Only one \"" + name + "\" block is allowed.",
					Subject:  &block.DefRange,
				})
			}
			found = block
		}
	}

	return found, diags
}

func decodePage(block *hcl.Block, spec *PageSpec) hcl.Diagnostics {
	var decoded pageBlock
	diags := gohcl.DecodeBody(block.Body, nil, &decoded)
	if diags.HasErrors() {
		return diags
	}

	if decoded.Width != nil {
		spec.Width = *decoded.Width
	}
	if decoded.Height != nil {
		spec.Height = *decoded.Height
	}
	if decoded.Numbering != nil {
		spec.Numbering = *decoded.Numbering
	}
	if spec.Width < 8 || spec.Height < 3 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid page size",
			Detail:   fmt.Sprintf("A page must be at least 8 columns wide and 3 lines high, got %dx%d.", spec.Width, spec.Height),
			Subject:  &block.DefRange,
		})
	}

	if decoded.Footer != nil {
		nodes, footerDiags := decodeChildren(decoded.Footer.Body)
		diags = append(diags, footerDiags...)
		spec.Footer = nodes
	}
	return diags
}

func decodeState(block *hcl.Block, initials map[string]cty.Value) hcl.Diagnostics {
	key := block.Labels[0]
	var decoded stateBlock
	diags := gohcl.DecodeBody(block.Body, nil, &decoded)
	if diags.HasErrors() {
		return diags
	}
	if _, dup := initials[key]; dup {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Duplicate state declaration",
			Detail:   fmt.Sprintf("State %q is already declared.", key),
			Subject:  &block.DefRange,
		})
	}

	initial := cty.NullVal(cty.DynamicPseudoType)
	if isExprDefined(decoded.Init) {
		diags = append(diags, checkExpressions(scanContext{}, decoded.Init)...)
		if diags.HasErrors() {
			return diags
		}
		val, valDiags := decoded.Init.Value(&hcl.EvalContext{Functions: frame.Functions(nil)})
		diags = append(diags, valDiags...)
		initial = val
	}
	initials[key] = initial
	return diags
}

// isExprDefined checks if an HCL expression was present in the source. The
// decoder populates omitted optional expressions with zero-width
// placeholders, so a nil check is insufficient.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

// decodeChildren decodes the content blocks of a body in source order.
func decodeChildren(body hcl.Body) ([]*Node, hcl.Diagnostics) {
	content, diags := body.Content(&hcl.BodySchema{Blocks: contentBlocks})
	if content == nil {
		return nil, diags
	}
	var nodes []*Node
	for _, block := range content.Blocks {
		node, nodeDiags := decodeNode(block)
		diags = append(diags, nodeDiags...)
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, diags
}

func decodeNode(block *hcl.Block) (*Node, hcl.Diagnostics) {
	node := &Node{Type: block.Type, Range: block.DefRange}
	if len(block.Labels) > 0 {
		node.Label = block.Labels[0]
	}

	if block.Type == BlockSet {
		attrs, diags := block.Body.JustAttributes()
		node.Attrs = attrs
		return node, diags
	}

	schema := &hcl.BodySchema{Attributes: blockAttributes[block.Type]}
	if containers[block.Type] {
		schema.Blocks = contentBlocks
	}
	content, diags := block.Body.Content(schema)
	if content == nil {
		return nil, diags
	}
	node.Attrs = content.Attributes

	if names, ok := exclusiveAttributes[block.Type]; ok {
		var present []string
		for _, name := range names {
			if _, ok := node.Attrs[name]; ok {
				present = append(present, name)
			}
		}
		if len(present) != 1 {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid " + block.Type + " block",
				Detail:   fmt.Sprintf("Exactly one of %v must be set, found %d.", names, len(present)),
				Subject:  &block.DefRange,
			})
		}
	}

	for _, child := range content.Blocks {
		n, childDiags := decodeNode(child)
		diags = append(diags, childDiags...)
		if n != nil {
			node.Children = append(node.Children, n)
		}
	}
	return node, diags
}

// findDocumentFiles walks all given paths and returns the .hcl files found,
// sorted lexically within each path.
func findDocumentFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		var found []string
		if info.IsDir() {
			err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && filepath.Ext(p) == ".hcl" {
					found = append(found, p)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			sort.Strings(found)
		} else if filepath.Ext(path) == ".hcl" {
			found = []string{path}
		}

		for _, p := range found {
			if _, wasSeen := seen[p]; !wasSeen {
				allFiles = append(allFiles, p)
				seen[p] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
