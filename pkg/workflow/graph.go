package workflow

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var graphLog = logger.New("workflow:graph")

// builder walks the entry function body and accumulates the staged graph.
type builder struct {
	s     *parser.Script
	decls *Declarations
	reg   *Registry

	graph       *Graph
	outputsVars map[string]*outputsVar
	inputsVars  map[string]*inputSpec
	locals      map[string]Value

	stepOrdinals map[string]int
	splitCount   int

	// Per function, the canonical shape of the template derived from the
	// first call. Later calls must match it.
	templateShape map[*StepFunc]string
}

type outputsVar struct {
	spec      *outputSpec
	producers []*Step
}

type outputSpec struct {
	params    []string
	artifacts []ArtifactBinding
}

type inputSpec struct {
	params    []ParamBinding
	artifacts []ArtifactBinding
	producers []*Step // from templated locator segments
}

// walkCtx carries guard and loop context down the statement walk.
type walkCtx struct {
	guard          string
	guardProducers []*Step
	loop           *loopCtx
}

type loopCtx struct {
	varName       string
	csv           bool
	split         *Step
	sequenceCount string
	seqProducers  []*Step
}

// BuildGraph interprets the entry function body: step invocations become
// graph nodes, guards become conditions, loops become fan-out, and every
// binding is resolved in lexical order so forward references fail where
// they are written.
func BuildGraph(s *parser.Script, decls *Declarations, reg *Registry) (*Graph, error) {
	b := &builder{
		s:             s,
		decls:         decls,
		reg:           reg,
		graph:         &Graph{EntryName: reg.Entry.Name.Name},
		outputsVars:   map[string]*outputsVar{},
		inputsVars:    map[string]*inputSpec{},
		locals:        map[string]Value{},
		stepOrdinals:  map[string]int{},
		templateShape: map[*StepFunc]string{},
	}
	if err := b.walkStmts(reg.Entry.Body.List, walkCtx{}); err != nil {
		return nil, err
	}
	if len(b.graph.Steps) == 0 {
		return nil, compileErrorf(UnsupportedConstructError, s.Position(reg.Entry.Pos()),
			"entry function %q invokes no steps", reg.Entry.Name.Name)
	}
	b.computeStages()
	graphLog.Printf("graph built: %d steps in %d stages", len(b.graph.Steps), len(b.graph.Stages))
	return b.graph, nil
}

func (b *builder) walkStmts(stmts []ast.Stmt, ctx walkCtx) error {
	for _, stmt := range stmts {
		if err := b.walkStmt(stmt, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) walkStmt(stmt ast.Stmt, ctx walkCtx) error {
	switch st := stmt.(type) {
	case *ast.ExprStmt:
		call, ok := st.X.(*ast.CallExpr)
		if !ok {
			return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
				"entry bodies may only invoke steps, assign values, branch, and iterate")
		}
		return b.handleCall(call, ctx)
	case *ast.AssignStmt:
		return b.handleAssign(st, ctx)
	case *ast.IfStmt:
		return b.handleIf(st, ctx)
	case *ast.RangeStmt:
		return b.handleRange(st, ctx)
	case *ast.ReturnStmt:
		if len(st.Results) > 0 {
			return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
				"entry functions return nothing")
		}
		return nil
	case *ast.EmptyStmt:
		return nil
	default:
		return compileErrorf(UnsupportedConstructError, b.s.Position(stmt.Pos()),
			"entry bodies may only invoke steps, assign values, branch, and iterate")
	}
}

func (b *builder) handleAssign(st *ast.AssignStmt, ctx walkCtx) error {
	if st.Tok != token.DEFINE || len(st.Lhs) != 1 || len(st.Rhs) != 1 {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"entry bodies support single := assignments only")
	}
	lhs, ok := st.Lhs[0].(*ast.Ident)
	if !ok {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"assignment target must be a plain identifier")
	}

	if call, sel, ok := parser.AnyPkgCall(st.Rhs[0], b.s.FlowAlias); ok {
		switch sel {
		case "NewOutputs":
			spec, err := b.parseOutputs(call, ctx)
			if err != nil {
				return err
			}
			b.outputsVars[lhs.Name] = &outputsVar{spec: spec}
			return nil
		case "NewInputs":
			spec, err := b.parseInputs(call, ctx)
			if err != nil {
				return err
			}
			b.inputsVars[lhs.Name] = spec
			return nil
		}
	}

	v, err := b.resolveValue(st.Rhs[0], ctx)
	if err != nil {
		return err
	}
	b.locals[lhs.Name] = v
	return nil
}

func (b *builder) handleCall(call *ast.CallExpr, ctx walkCtx) error {
	callee, ok := call.Fun.(*ast.Ident)
	if !ok {
		return compileErrorf(UnsupportedConstructError, b.s.Position(call.Pos()),
			"entry bodies may only invoke step functions")
	}
	fn := b.reg.StepByName(callee.Name)
	if fn == nil {
		if callee.Name == b.reg.Entry.Name.Name {
			return compileErrorf(UnsupportedConstructError, b.s.Position(call.Pos()),
				"entry function %q calls itself", callee.Name)
		}
		return compileErrorf(UnsupportedConstructError, b.s.Position(call.Pos()),
			"%q is not a step function", callee.Name)
	}
	if len(call.Args) != 2 {
		return compileErrorf(SignatureError, b.s.Position(call.Pos()),
			"step %q takes an inputs and an outputs argument, got %d arguments", fn.Name, len(call.Args))
	}

	inArg := call.Args[fn.InputsIndex]
	outArg := call.Args[1-fn.InputsIndex]

	in, err := b.inputsFor(inArg, ctx)
	if err != nil {
		return err
	}
	outVar, outSpec, err := b.outputsFor(outArg, ctx)
	if err != nil {
		return err
	}

	if err := b.checkContract(fn, in, outSpec, call.Pos()); err != nil {
		return err
	}

	step := &Step{
		Name:            b.invocationName(fn),
		Fn:              fn,
		InputParams:     in.params,
		InputArtifacts:  in.artifacts,
		OutputParams:    outSpec.params,
		OutputArtifacts: outSpec.artifacts,
		Guard:           ctx.guard,
		Pos:             call.Pos(),
	}
	for _, p := range in.params {
		for _, prod := range p.Value.Producers {
			step.addProducer(prod)
		}
	}
	for _, a := range in.artifacts {
		if a.Producer != nil {
			step.addProducer(a.Producer)
		}
	}
	for _, prod := range in.producers {
		step.addProducer(prod)
	}
	for _, prod := range ctx.guardProducers {
		step.addProducer(prod)
	}
	if ctx.loop != nil {
		if ctx.loop.csv {
			step.Iteration = &IterationSpec{
				WithParam: "{{steps." + ctx.loop.split.Name + ".outputs.parameters.rows}}",
			}
			step.addProducer(ctx.loop.split)
		} else {
			step.Iteration = &IterationSpec{SequenceCount: ctx.loop.sequenceCount}
			for _, prod := range ctx.loop.seqProducers {
				step.addProducer(prod)
			}
		}
	}

	if err := b.checkTemplateShape(fn, step); err != nil {
		return err
	}

	b.graph.Steps = append(b.graph.Steps, step)
	if outVar != nil {
		outVar.producers = append(outVar.producers, step)
	}
	return nil
}

func (b *builder) inputsFor(arg ast.Expr, ctx walkCtx) (*inputSpec, error) {
	if id, ok := arg.(*ast.Ident); ok {
		if spec, ok := b.inputsVars[id.Name]; ok {
			return spec, nil
		}
		return nil, compileErrorf(UnboundReferenceError, b.s.Position(arg.Pos()),
			"%q is not a known inputs object", id.Name)
	}
	if call, sel, ok := parser.AnyPkgCall(arg, b.s.FlowAlias); ok && sel == "NewInputs" {
		return b.parseInputs(call, ctx)
	}
	return nil, compileErrorf(UnsupportedConstructError, b.s.Position(arg.Pos()),
		"inputs argument must be an inputs object or an inline %s.NewInputs call", b.s.FlowAlias)
}

func (b *builder) outputsFor(arg ast.Expr, ctx walkCtx) (*outputsVar, *outputSpec, error) {
	if id, ok := arg.(*ast.Ident); ok {
		if ov, ok := b.outputsVars[id.Name]; ok {
			return ov, ov.spec, nil
		}
		return nil, nil, compileErrorf(UnboundReferenceError, b.s.Position(arg.Pos()),
			"%q is not a known outputs object", id.Name)
	}
	if call, sel, ok := parser.AnyPkgCall(arg, b.s.FlowAlias); ok && sel == "NewOutputs" {
		spec, err := b.parseOutputs(call, ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, spec, nil
	}
	return nil, nil, compileErrorf(UnsupportedConstructError, b.s.Position(arg.Pos()),
		"outputs argument must be an outputs object or an inline %s.NewOutputs call", b.s.FlowAlias)
}

// parseInputs interprets flow.NewInputs(flow.InParam(...), flow.InFile(...),
// flow.InArtifact(...)) option calls.
func (b *builder) parseInputs(call *ast.CallExpr, ctx walkCtx) (*inputSpec, error) {
	spec := &inputSpec{}
	seen := map[string]bool{}
	for _, arg := range call.Args {
		opt, sel, ok := parser.AnyPkgCall(arg, b.s.FlowAlias)
		if !ok {
			return nil, compileErrorf(UnsupportedConstructError, b.s.Position(arg.Pos()),
				"NewInputs arguments must be %s.InParam, %s.InFile, or %s.InArtifact calls",
				b.s.FlowAlias, b.s.FlowAlias, b.s.FlowAlias)
		}
		slot, err := b.bindingSlot(opt, sel, seen)
		if err != nil {
			return nil, err
		}
		switch sel {
		case "InParam":
			if len(opt.Args) != 2 {
				return nil, b.arityErr(opt, "InParam", "a slot name and a value")
			}
			v, err := b.resolveValue(opt.Args[1], ctx)
			if err != nil {
				return nil, err
			}
			spec.params = append(spec.params, ParamBinding{Slot: slot, Value: v})
		case "InFile":
			bind, deps, err := b.parseInFile(opt, slot, ctx)
			if err != nil {
				return nil, err
			}
			spec.artifacts = append(spec.artifacts, *bind)
			spec.producers = append(spec.producers, deps...)
		case "InArtifact":
			bind, err := b.parseInArtifact(opt, slot)
			if err != nil {
				return nil, err
			}
			spec.artifacts = append(spec.artifacts, *bind)
		default:
			return nil, compileErrorf(UnsupportedConstructError, b.s.Position(opt.Pos()),
				"%s.%s is not an input binding", b.s.FlowAlias, sel)
		}
	}
	return spec, nil
}

func (b *builder) parseInFile(opt *ast.CallExpr, slot string, ctx walkCtx) (*ArtifactBinding, []*Step, error) {
	if len(opt.Args) != 4 {
		return nil, nil, b.arityErr(opt, "InFile", "a slot name, a mount point, a directory, and a file name")
	}
	mount, err := b.mountArg(opt.Args[1])
	if err != nil {
		return nil, nil, err
	}
	dir, err := b.resolveValue(opt.Args[2], ctx)
	if err != nil {
		return nil, nil, err
	}
	file, err := b.resolveValue(opt.Args[3], ctx)
	if err != nil {
		return nil, nil, err
	}
	bind := &ArtifactBinding{
		Slot:   slot,
		Source: ArtifactFromMount,
		Bucket: mount.Bucket,
		Key:    joinKey(mount.Prefix, dir.Text, file.Text),
	}
	// Templated locator segments still order the step after their producers.
	deps := append(append([]*Step(nil), dir.Producers...), file.Producers...)
	return bind, deps, nil
}

func (b *builder) parseInArtifact(opt *ast.CallExpr, slot string) (*ArtifactBinding, error) {
	if len(opt.Args) != 2 {
		return nil, b.arityErr(opt, "InArtifact", "a slot name and a produced artifact reference")
	}
	ref, recv, ok := parser.MethodCall(opt.Args[1], "Artifact")
	if !ok {
		return nil, compileErrorf(UnsupportedConstructError, b.s.Position(opt.Args[1].Pos()),
			"InArtifact takes a reference of the form <outputs>.Artifact(\"slot\")")
	}
	v, handled, err := b.resolveOutputRef(ref, recv.Name, true)
	if !handled {
		return nil, compileErrorf(UnboundReferenceError, b.s.Position(opt.Args[1].Pos()),
			"%q is not a known outputs object", recv.Name)
	}
	if err != nil {
		return nil, err
	}
	producerSlot, _ := parser.StringLit(ref.Args[0])
	return &ArtifactBinding{
		Slot:         slot,
		Source:       ArtifactFromStep,
		Producer:     v.Producers[0],
		ProducerSlot: producerSlot,
	}, nil
}

// parseOutputs interprets flow.NewOutputs(flow.OutParam(...),
// flow.OutFile(...), flow.OutTmp(...)) option calls.
func (b *builder) parseOutputs(call *ast.CallExpr, ctx walkCtx) (*outputSpec, error) {
	spec := &outputSpec{}
	seen := map[string]bool{}
	for _, arg := range call.Args {
		opt, sel, ok := parser.AnyPkgCall(arg, b.s.FlowAlias)
		if !ok {
			return nil, compileErrorf(UnsupportedConstructError, b.s.Position(arg.Pos()),
				"NewOutputs arguments must be %s.OutParam, %s.OutFile, or %s.OutTmp calls",
				b.s.FlowAlias, b.s.FlowAlias, b.s.FlowAlias)
		}
		slot, err := b.bindingSlot(opt, sel, seen)
		if err != nil {
			return nil, err
		}
		switch sel {
		case "OutParam":
			if len(opt.Args) != 1 {
				return nil, b.arityErr(opt, "OutParam", "a slot name")
			}
			spec.params = append(spec.params, slot)
		case "OutFile":
			if len(opt.Args) != 3 {
				return nil, b.arityErr(opt, "OutFile", "a slot name, a mount point, and a directory")
			}
			mount, err := b.mountArg(opt.Args[1])
			if err != nil {
				return nil, err
			}
			dir, err := b.resolveValue(opt.Args[2], ctx)
			if err != nil {
				return nil, err
			}
			if err := b.checkTemplateScopeValue(dir, opt.Args[2].Pos(), slot); err != nil {
				return nil, err
			}
			spec.artifacts = append(spec.artifacts, ArtifactBinding{
				Slot:   slot,
				Source: ArtifactFromMount,
				Bucket: mount.Bucket,
				Key:    joinKey(mount.Prefix, dir.Text),
			})
		case "OutTmp":
			if len(opt.Args) != 1 {
				return nil, b.arityErr(opt, "OutTmp", "a slot name")
			}
			spec.artifacts = append(spec.artifacts, ArtifactBinding{Slot: slot, Source: ArtifactTmp})
		default:
			return nil, compileErrorf(UnsupportedConstructError, b.s.Position(opt.Pos()),
				"%s.%s is not an output binding", b.s.FlowAlias, sel)
		}
	}
	return spec, nil
}

// checkTemplateScopeValue rejects locator segments that only resolve inside
// a step invocation. OutFile directories land in the exec template's output
// artifact locator, where the orchestrator resolves workflow parameters but
// not step outputs or loop items.
func (b *builder) checkTemplateScopeValue(v Value, pos token.Pos, slot string) error {
	bad := len(v.Producers) > 0 ||
		v.Kind == ValueStepOutput || v.Kind == ValueItem || v.Kind == ValueItemField ||
		strings.Contains(v.Text, "{{item")
	if bad {
		return compileErrorf(UnsupportedExpressionError, b.s.Position(pos),
			"OutFile directory for slot %q must be a literal or workflow parameter: step outputs and loop items do not resolve in a step template", slot)
	}
	return nil
}

func (b *builder) bindingSlot(opt *ast.CallExpr, sel string, seen map[string]bool) (string, error) {
	if len(opt.Args) == 0 {
		return "", b.arityErr(opt, sel, "a slot name first")
	}
	slot, ok := parser.StringLit(opt.Args[0])
	if !ok {
		return "", compileErrorf(UnsupportedConstructError, b.s.Position(opt.Args[0].Pos()),
			"%s slot names must be string literals", sel)
	}
	if seen[slot] {
		return "", compileErrorf(SlotContractError, b.s.Position(opt.Pos()),
			"slot %q bound twice", slot)
	}
	seen[slot] = true
	return slot, nil
}

func (b *builder) mountArg(arg ast.Expr) (*MountPointDecl, error) {
	id, ok := arg.(*ast.Ident)
	if ok {
		if m := b.decls.MountByIdent(id.Name); m != nil {
			return m, nil
		}
	}
	return nil, compileErrorf(UnboundReferenceError, b.s.Position(arg.Pos()),
		"expected a declared mount point")
}

func (b *builder) arityErr(opt *ast.CallExpr, name, want string) error {
	return compileErrorf(UnsupportedConstructError, b.s.Position(opt.Pos()),
		"%s takes %s", name, want)
}

// checkContract verifies the call-site bindings cover the body's slot usage
// exactly, in both directions and per kind.
func (b *builder) checkContract(fn *StepFunc, in *inputSpec, out *outputSpec, pos token.Pos) error {
	var boundInParams, boundInArtifacts []string
	for _, p := range in.params {
		boundInParams = append(boundInParams, p.Slot)
	}
	for _, a := range in.artifacts {
		boundInArtifacts = append(boundInArtifacts, a.Slot)
	}
	var boundOutArtifacts []string
	for _, a := range out.artifacts {
		boundOutArtifacts = append(boundOutArtifacts, a.Slot)
	}

	checks := []struct {
		what   string
		bound  []string
		needed []string
	}{
		{"input parameter", boundInParams, fn.Contract.InParams},
		{"input artifact", boundInArtifacts, fn.Contract.InArtifacts},
		{"output parameter", out.params, fn.Contract.OutParams},
		{"output artifact", boundOutArtifacts, fn.Contract.OutArtifacts},
	}
	for _, c := range checks {
		if missing := diffSlots(c.needed, c.bound); len(missing) > 0 {
			return compileErrorf(SlotContractError, b.s.Position(pos),
				"step %q reads or writes %s slot %q, which this call does not bind", fn.Name, c.what, missing[0])
		}
		if extra := diffSlots(c.bound, c.needed); len(extra) > 0 {
			return compileErrorf(SlotContractError, b.s.Position(pos),
				"call binds %s slot %q, which step %q never touches", c.what, extra[0], fn.Name)
		}
	}
	return nil
}

func diffSlots(a, b []string) []string {
	var out []string
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}

// checkTemplateShape ensures repeat invocations of one step function agree
// on everything that lands in the shared template: output bindings decide
// template-level artifact specs, so they must not vary across calls.
func (b *builder) checkTemplateShape(fn *StepFunc, step *Step) error {
	shape := templateShapeOf(step)
	if prev, ok := b.templateShape[fn]; ok {
		if prev != shape {
			return compileErrorf(SlotContractError, b.s.Position(step.Pos),
				"step %q is invoked with conflicting output bindings: all calls must agree because they share one template", fn.Name)
		}
		return nil
	}
	b.templateShape[fn] = shape
	return nil
}

func templateShapeOf(step *Step) string {
	shape := ""
	for _, a := range step.OutputArtifacts {
		shape += fmt.Sprintf("%s|%d|%s|%s;", a.Slot, a.Source, a.Bucket, a.Key)
	}
	return shape
}

func (b *builder) invocationName(fn *StepFunc) string {
	base := Hyphenate(fn.Name)
	b.stepOrdinals[base]++
	if n := b.stepOrdinals[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}

// computeStages assigns each step the earliest stage after all of its
// producers and groups steps per stage. Steps appear in source order, and a
// producer always precedes its consumers, so one forward pass suffices.
func (b *builder) computeStages() {
	maxStage := 0
	for _, step := range b.graph.Steps {
		stage := 0
		for _, p := range step.producers {
			if p.Stage+1 > stage {
				stage = p.Stage + 1
			}
		}
		step.Stage = stage
		if stage > maxStage {
			maxStage = stage
		}
	}
	b.graph.Stages = make([][]*Step, maxStage+1)
	for _, step := range b.graph.Steps {
		b.graph.Stages[step.Stage] = append(b.graph.Stages[step.Stage], step)
	}
}
