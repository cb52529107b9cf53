package workflow

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/argot-dev/argot/pkg/constants"
	"github.com/argot-dev/argot/pkg/parser"
)

// handleRange translates the two fan-out forms. A CSV loop synthesizes a
// split step that downloads the file and publishes its rows; a sequence
// loop fans out over a produced count. Loops do not nest: the orchestrator
// has a single item scope per step.
func (b *builder) handleRange(st *ast.RangeStmt, ctx walkCtx) error {
	if ctx.loop != nil {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"loops cannot nest: each fan-out step sees exactly one item")
	}
	if st.Tok != token.DEFINE || st.Value != nil {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"loops must take the form `for v := range ...`")
	}
	key, ok := st.Key.(*ast.Ident)
	if !ok {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"the loop variable must be a plain identifier")
	}

	call, sel, ok := parser.AnyPkgCall(st.X, b.s.FlowAlias)
	if !ok {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.X.Pos()),
			"loops may only range over %s.IterCSV or %s.IterateN", b.s.FlowAlias, b.s.FlowAlias)
	}

	inner := ctx
	switch sel {
	case "IterCSV":
		split, err := b.synthesizeSplit(call, ctx)
		if err != nil {
			return err
		}
		inner.loop = &loopCtx{varName: key.Name, csv: true, split: split}
	case "IterateN":
		if len(call.Args) != 1 {
			return b.arityErr(call, "IterateN", "a count value")
		}
		count, err := b.resolveValue(call.Args[0], ctx)
		if err != nil {
			return err
		}
		inner.loop = &loopCtx{
			varName:       key.Name,
			sequenceCount: count.Text,
			seqProducers:  count.Producers,
		}
	default:
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.X.Pos()),
			"loops may only range over %s.IterCSV or %s.IterateN", b.s.FlowAlias, b.s.FlowAlias)
	}

	return b.walkStmts(st.Body.List, inner)
}

// synthesizeSplit appends a generated step that fetches the CSV named by a
// mount locator and publishes two output parameters: rows, a JSON array of
// header-keyed objects for withParam fan-out, and count, the number of
// data rows.
func (b *builder) synthesizeSplit(call *ast.CallExpr, ctx walkCtx) (*Step, error) {
	if len(call.Args) != 3 {
		return nil, b.arityErr(call, "IterCSV", "a mount point, a directory, and a file name")
	}
	mount, err := b.mountArg(call.Args[0])
	if err != nil {
		return nil, err
	}
	dir, err := b.resolveValue(call.Args[1], ctx)
	if err != nil {
		return nil, err
	}
	file, err := b.resolveValue(call.Args[2], ctx)
	if err != nil {
		return nil, err
	}

	b.splitCount++
	split := &Step{
		Name:        fmt.Sprintf("%s%d", constants.SplitStepPrefix, b.splitCount),
		Guard:       ctx.guard,
		Pos:         call.Pos(),
		Synthesized: true,
		SplitSource: splitScriptSource,
		SplitInput: ArtifactBinding{
			Slot:   "rows",
			Source: ArtifactFromMount,
			Bucket: mount.Bucket,
			Key:    joinKey(mount.Prefix, dir.Text, file.Text),
		},
		OutputParams: []string{"count", "rows"},
	}
	for _, prod := range append(dir.Producers, file.Producers...) {
		split.addProducer(prod)
	}
	for _, prod := range ctx.guardProducers {
		split.addProducer(prod)
	}
	b.graph.Steps = append(b.graph.Steps, split)
	return split, nil
}

// splitScriptSource is the embedded program of every synthesized split
// step. The input artifact lands at the templated path; the row objects go
// out as JSON so downstream steps can address fields with {{item.<field>}}.
const splitScriptSource = `package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
)

func main() {
	f, err := os.Open("{{inputs.artifacts.rows.path}}")
	if err != nil {
		panic(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		panic(err)
	}
	if len(records) == 0 {
		panic("csv file has no header row")
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	if err := os.MkdirAll("/workdir/out", 0o755); err != nil {
		panic(err)
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile("/workdir/out/rows", encoded, 0o644); err != nil {
		panic(err)
	}
	if err := os.WriteFile("/workdir/out/count", []byte(strconv.Itoa(len(rows))), 0o644); err != nil {
		panic(err)
	}
}
`
