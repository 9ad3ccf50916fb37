package iterlower

// Generator steps through the values of a Protocol.
//
//	g := iterlower.New(p)
//	for g.Next() {
//		use(g.Recv())
//	}
//	if err := g.Err(); err != nil {
//		...
//	}
type Generator struct {
	p       Protocol
	cursor  int64
	value   any
	started bool
	done    bool
	err     error
}

// New returns a Generator positioned before the first value of p.
func New(p Protocol) *Generator {
	return &Generator{p: p}
}

// Next advances to the next value. It returns false once the iterator is
// exhausted or an error occurred.
func (g *Generator) Next() bool {
	if g.done {
		return false
	}
	var err error
	if g.started {
		g.cursor, err = g.p.NextCursor(g.cursor)
	} else {
		g.started = true
		g.cursor, err = g.p.HeadCursor()
	}
	if err != nil {
		return g.fail(err)
	}
	valid, err := g.p.ValidCursor(g.cursor)
	if err != nil {
		return g.fail(err)
	}
	if !valid {
		g.done = true
		return false
	}
	g.value, err = g.p.Value(g.cursor)
	if err != nil {
		return g.fail(err)
	}
	return true
}

func (g *Generator) fail(err error) bool {
	g.err = err
	g.done = true
	return false
}

// Recv returns the current value.
func (g *Generator) Recv() any { return g.value }

// Cursor returns the current cursor. After Next returned false without
// error, it is the exhausted cursor.
func (g *Generator) Cursor() int64 { return g.cursor }

// Err returns the first error returned by the protocol.
func (g *Generator) Err() error { return g.err }
