package workflow

import (
	"sort"

	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var transformLog = logger.New("workflow:transformer")

// edit is one byte-range replacement over the original source. Edits never
// overlap: each accessor rewrite owns a distinct range.
type edit struct {
	start, end int
	text       string
}

// TransformBody rewrites a step function's body for embedding: every
// accessor call becomes either an inline placeholder or a call to one of
// the helper shims, and everything else keeps its exact source bytes. The
// result is the body text between the braces, still indented as written.
func TransformBody(s *parser.Script, fn *StepFunc) (string, []AccessorUse, error) {
	scan, err := ScanAccessors(s, fn)
	if err != nil {
		return "", nil, err
	}

	var edits []edit
	for _, use := range scan.Uses {
		e, err := rewriteFor(s, use)
		if err != nil {
			return "", nil, err
		}
		edits = append(edits, e)
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	body := fn.Decl.Body
	start := s.Offset(body.Lbrace) + 1
	end := s.Offset(body.Rbrace)

	var out []byte
	cursor := start
	for _, e := range edits {
		out = append(out, s.Source[cursor:e.start]...)
		out = append(out, e.text...)
		cursor = e.end
	}
	out = append(out, s.Source[cursor:end]...)

	transformLog.Printf("transformed %s: %d rewrites", fn.Name, len(edits))
	return string(out), scan.Uses, nil
}

// rewriteFor maps one matched accessor to its replacement. Rewrites that
// keep an argument's source bytes replace only the prefix up to that
// argument, so arbitrary value expressions survive verbatim.
func rewriteFor(s *parser.Script, use AccessorUse) (edit, error) {
	callStart := s.Offset(use.Call.Pos())
	callEnd := s.Offset(use.Call.End())

	switch use.Kind {
	case AccessInParam:
		return edit{callStart, callEnd, `"{{inputs.parameters.` + use.Slot + `}}"`}, nil

	case AccessInPath:
		return edit{callStart, callEnd, `"{{inputs.artifacts.` + use.Slot + `.path}}"`}, nil

	case AccessOutPath:
		return edit{callStart, callEnd, `"{{outputs.artifacts.` + use.Slot + `.path}}"`}, nil

	case AccessInOpen:
		if len(use.Call.Args) == 0 {
			return edit{callStart, callEnd, `os.Open("{{inputs.artifacts.` + use.Slot + `.path}}")`}, nil
		}
		argStart := s.Offset(use.Call.Args[0].Pos())
		return edit{callStart, argStart, `argotOpen("{{inputs.artifacts.` + use.Slot + `.path}}", `}, nil

	case AccessOutCreate:
		argStart := s.Offset(use.Call.Args[0].Pos())
		return edit{callStart, argStart, `argotCreate("{{outputs.artifacts.` + use.Slot + `.path}}", `}, nil

	case AccessOutSetParam:
		argStart := s.Offset(use.Call.Args[1].Pos())
		return edit{callStart, argStart, `argotWriteParam("/workdir/out/` + use.Slot + `", `}, nil
	}

	return edit{}, compileErrorf(UnsupportedAccessPatternError, s.Position(use.Call.Pos()),
		"no rewrite for accessor on slot %q", use.Slot)
}
