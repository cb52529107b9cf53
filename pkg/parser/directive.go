package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/argot-dev/argot/pkg/logger"
)

var directiveLog = logger.New("parser:directive")

// DirectiveKind distinguishes the two function markers of the dialect.
type DirectiveKind int

const (
	// DirectiveStep marks a step function: //argot:step image=<ref>
	DirectiveStep DirectiveKind = iota
	// DirectiveEntry marks the entry function: //argot:entry
	DirectiveEntry
)

const directivePrefix = "//argot:"

// Directive is a parsed //argot: marker on a function declaration.
type Directive struct {
	Kind  DirectiveKind
	Image string
	Pos   token.Pos
}

// ParseDirective scans a function's doc comment for an //argot: marker.
// It returns nil when the function carries none. Unknown marker names and
// unknown attributes are errors: the dialect has no passthrough for
// unsupported orchestrator features, they must fail loudly.
func ParseDirective(fn *ast.FuncDecl) (*Directive, error) {
	if fn.Doc == nil {
		return nil, nil
	}

	for _, c := range fn.Doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		directiveLog.Printf("Found directive on %s: %s", fn.Name.Name, c.Text)

		rest := strings.TrimPrefix(c.Text, directivePrefix)
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty argot directive on function %s", fn.Name.Name)
		}

		switch fields[0] {
		case "step":
			d := &Directive{Kind: DirectiveStep, Pos: c.Pos()}
			for _, attr := range fields[1:] {
				key, value, ok := strings.Cut(attr, "=")
				if !ok {
					return nil, fmt.Errorf("malformed attribute %q in //argot:step on function %s", attr, fn.Name.Name)
				}
				switch key {
				case "image":
					d.Image = value
				default:
					return nil, fmt.Errorf("unknown attribute %q in //argot:step on function %s", key, fn.Name.Name)
				}
			}
			if d.Image == "" {
				return nil, fmt.Errorf("//argot:step on function %s requires an image attribute", fn.Name.Name)
			}
			return d, nil

		case "entry":
			if len(fields) > 1 {
				return nil, fmt.Errorf("//argot:entry takes no attributes (function %s)", fn.Name.Name)
			}
			return &Directive{Kind: DirectiveEntry, Pos: c.Pos()}, nil

		default:
			return nil, fmt.Errorf("unknown argot directive %q on function %s", fields[0], fn.Name.Name)
		}
	}

	return nil, nil
}
