package compiler

import (
	"io"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/stealthrocket/iterlower/ir"
)

// Normalize rewrites every function of the module into the restricted
// form later compilation stages expect. Iterators are lowered into a
// generated class implementing the cursor protocol plus a factory
// function that builds an instance of it.
//
// The tree is modified in place. Violated input invariants are reported
// as an *InternalError; the module must be discarded in that case.
func Normalize(mod *ir.ModuleSymbol, options ...Option) error {
	return NewPass(options...).Normalize(mod)
}

// Option configures a normalization pass.
type Option func(*Pass)

// WithLogger sets the logger used for progress and debug messages.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pass) { p.logger = l }
}

// WithConfig applies a configuration loaded with LoadConfig.
func WithConfig(c Config) Option {
	return func(p *Pass) { p.config = c }
}

// WithVerify enables structural verification after every pass.
func WithVerify(enabled bool) Option {
	return func(p *Pass) { p.config.Verify = enabled }
}

// WithDump sets the writer receiving tree dumps. Dumps go to stderr by
// default.
func WithDump(w io.Writer) Option {
	return func(p *Pass) { p.dump = w }
}

// Pass holds the state shared by the normalizations of one compilation.
// Generated class names are numbered per Pass, so modules normalized by
// the same Pass never share a name.
type Pass struct {
	logger *zap.Logger
	config Config
	dump   io.Writer

	iterators int
}

// NewPass returns a Pass configured with the given options.
func NewPass(options ...Option) *Pass {
	p := &Pass{dump: os.Stderr}
	for _, option := range options {
		option(p)
	}
	if p.logger == nil {
		p.logger = Logger()
	}
	return p
}

// Normalize is like the package level Normalize but numbers generated
// classes after those of previous calls.
func (p *Pass) Normalize(mod *ir.ModuleSymbol) (err error) {
	n := &normalizer{Pass: p, loc: mod.Pos()}
	defer recoverInternalError(&err)

	p.logger.Debug("normalizing module", zap.String("module", mod.Name()))
	n.normalize(mod)
	return nil
}

type normalizer struct {
	*Pass

	// loc is the position given to diagnostics raised while no better
	// node is at hand.
	loc ir.Pos
}

type pass struct {
	name string
	run  func(*normalizer, ir.Node)
}

// passes is assigned in init because lowering an iterator runs the
// pipeline again, which makes the table refer to itself.
var passes []pass

func init() {
	passes = []pass{
		{"cleanup", (*normalizer).cleanup},
		{"functions", (*normalizer).prepareFunctions},
		{"lvalues", (*normalizer).buildLvalueFunctions},
		{"returns", (*normalizer).normalizeAllReturns},
		{"constructors", (*normalizer).callConstructors},
		{"getters-setters", (*normalizer).applyAllGettersSetters},
		{"defs", (*normalizer).fixDefExprs},
		{"call-temps", (*normalizer).insertAllCallTemps},
		{"globals", (*normalizer).tagGlobals},
		{"types", (*normalizer).hackResolveTypes},
	}
}

// PassNames returns the names of the normalization passes in the order
// they run.
func PassNames() []string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.name
	}
	return names
}

// normalize runs the pass pipeline over the tree rooted at root. Lowering
// an iterator calls it again on the definitions it synthesizes, which
// must tolerate being normalized twice.
func (n *normalizer) normalize(root ir.Node) {
	for _, p := range passes {
		if n.config.skips(p.name) {
			continue
		}
		n.dumpTree(root, p.name, n.config.DumpBefore, "before")
		p.run(n, root)
		ir.InheritPositions(root)
		n.dumpTree(root, p.name, n.config.DumpAfter, "after")
		if n.config.Verify {
			if err := ir.Verify(root); err != nil {
				n.fatalf(root, "tree is malformed after %s: %v", p.name, err)
			}
		}
	}
}

func (n *normalizer) dumpTree(root ir.Node, pass string, which []string, when string) {
	if !slices.Contains(which, pass) {
		return
	}
	var nodes []ir.Node
	if n.config.DumpFunc == "" {
		nodes = []ir.Node{root}
	} else {
		for _, fn := range ir.CollectOf[*ir.FnSymbol](root) {
			if fn.Name() == n.config.DumpFunc {
				nodes = append(nodes, fn)
			}
		}
	}
	for _, x := range nodes {
		io.WriteString(n.dump, "// "+when+" "+pass+"\n")
		ir.Fprint(n.dump, x)
	}
}

// functions returns the functions defined in the tree rooted at root, in
// pre-order or post-order.
func functions(root ir.Node, post bool) []*ir.FnSymbol {
	var nodes []ir.Node
	if post {
		nodes = ir.CollectPostorder(root)
	} else {
		nodes = ir.Collect(root)
	}
	var fns []*ir.FnSymbol
	for _, x := range nodes {
		if fn, ok := x.(*ir.FnSymbol); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// detached reports whether an earlier rewrite removed fn from the tree
// being normalized.
func detached(root ir.Node, fn *ir.FnSymbol) bool {
	return !ir.Contains(root, fn)
}

// parentSymbol returns the nearest symbol enclosing n.
func parentSymbol(n ir.Node) ir.Symbol {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s, ok := p.(ir.Symbol); ok {
			return s
		}
	}
	return nil
}

func (n *normalizer) cleanup(root ir.Node) {
	for _, x := range ir.Collect(root) {
		ts, ok := x.(*ir.TypeSymbol)
		if !ok {
			continue
		}
		class, ok := ts.Type.(*ir.ClassType)
		if !ok || class.DefaultConstructor != nil || hasConstructorMethod(ir.ModuleOf(ts), class) {
			continue
		}
		n.loc = ts.Pos()
		n.buildDefaultConstructor(class)
	}
}

func (n *normalizer) prepareFunctions(root ir.Node) {
	work := functions(root, false)
	for len(work) > 0 {
		fn := work[0]
		work = work[1:]
		if detached(root, fn) {
			continue
		}
		n.loc = fn.Pos()
		n.checkFunction(fn)
		work = append(work, n.clonePrimitiveMethods(fn)...)
		if clones := n.fixupParameterizedFormals(fn); clones != nil {
			work = append(work, clones...)
			continue
		}
		if fn.Kind == ir.FnIterator {
			n.enableScalarPromotion(fn)
			n.lowerIterator(fn)
		}
		n.changeMethodIntoConstructor(fn)
	}
}

func (n *normalizer) buildLvalueFunctions(root ir.Node) {
	for _, fn := range functions(root, true) {
		if fn.BuildSetter {
			n.loc = fn.Pos()
			n.buildLvalueFunction(fn)
		}
	}
}

func (n *normalizer) normalizeAllReturns(root ir.Node) {
	for _, fn := range functions(root, false) {
		n.loc = fn.Pos()
		n.normalizeReturns(fn)
	}
}

func (n *normalizer) callConstructors(root ir.Node) {
	for _, call := range calls(root) {
		n.callConstructorForClass(call)
	}
}

func (n *normalizer) applyAllGettersSetters(root ir.Node) {
	for _, fn := range functions(root, true) {
		if !fn.DefSetGet {
			n.loc = fn.Pos()
			n.applyGettersSetters(fn)
		}
	}
}

func (n *normalizer) fixDefExprs(root ir.Node) {
	for _, x := range ir.CollectPostorder(root) {
		def, ok := x.(*ir.DefExpr)
		if !ok {
			continue
		}
		v, ok := def.Sym.(*ir.VarSymbol)
		if !ok {
			continue
		}
		if _, ok := parentSymbol(def).(*ir.FnSymbol); ok {
			n.fixDefExpr(v)
		}
	}
}

func (n *normalizer) insertAllCallTemps(root ir.Node) {
	for _, call := range calls(root) {
		n.insertCallTemps(call)
		n.fixUserAssign(call)
	}
}

func (n *normalizer) tagGlobals(root ir.Node) {
	for _, fn := range functions(root, true) {
		n.tagGlobal(fn)
	}
}

func (n *normalizer) hackResolveTypes(root ir.Node) {
	for _, x := range ir.CollectPostorder(root) {
		if def, ok := x.(*ir.DefExpr); ok {
			hackResolveType(def)
		}
	}
}

// calls returns the calls of the tree rooted at root in post-order.
func calls(root ir.Node) []*ir.CallExpr {
	var out []*ir.CallExpr
	for _, x := range ir.CollectPostorder(root) {
		if call, ok := x.(*ir.CallExpr); ok {
			out = append(out, call)
		}
	}
	return out
}
