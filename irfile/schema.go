package irfile

import (
	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a module.
//
//	module: demo
//	decls:
//	  - fn: squares
//	    iterator: true
//	    formals:
//	      - {name: n, type: int}
//	    returns: int
//	    body:
//	      - var: i
//	        init: "1"
//	      - while: i <= n
//	        do:
//	          - yield: i * i
//	          - assign: [i, i + 1]
//
// Expressions are written with Go syntax; a.f reads field f of a and
// typeof(e) is the type of e.
type File struct {
	Module string `yaml:"module"`
	Decls  []Decl `yaml:"decls"`
}

// Decl is a module-level declaration: a function (fn), a class (class) or
// a variable (var).
type Decl struct {
	Fn    string `yaml:"fn,omitempty"`
	Class string `yaml:"class,omitempty"`
	Var   string `yaml:"var,omitempty"`

	// Functions.
	Iterator bool     `yaml:"iterator,omitempty"`
	Method   string   `yaml:"method,omitempty"` // receiver class
	Formals  []Formal `yaml:"formals,omitempty"`
	Returns  string   `yaml:"returns,omitempty"`
	Setter   bool     `yaml:"setter,omitempty"`
	Param    bool     `yaml:"param,omitempty"`
	Body     []Stmt   `yaml:"body,omitempty"`

	// Classes.
	Fields  []Field  `yaml:"fields,omitempty"`
	Record  bool     `yaml:"record,omitempty"`
	Pragmas []string `yaml:"pragmas,omitempty"`

	// Variables.
	Type  string `yaml:"type,omitempty"`
	Init  string `yaml:"init,omitempty"`
	Const bool   `yaml:"const,omitempty"`

	Line int `yaml:"-"`
}

func (d *Decl) UnmarshalYAML(value *yaml.Node) error {
	type rawDecl Decl
	if err := value.Decode((*rawDecl)(d)); err != nil {
		return err
	}
	d.Line = value.Line
	return nil
}

// Formal is a function parameter. Query names a variable bound to the
// width of the numeric family in Type, as in int(?w).
type Formal struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type,omitempty"`
	Default string `yaml:"default,omitempty"`
	Intent  string `yaml:"intent,omitempty"`
	Query   string `yaml:"query,omitempty"`
}

type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
	Init string `yaml:"init,omitempty"`
}

// Stmt is a statement. Exactly one of its keys selects the kind of
// statement; the others complete it.
type Stmt struct {
	Var   string `yaml:"var,omitempty"`
	Const string `yaml:"const,omitempty"`
	Param string `yaml:"param,omitempty"`
	Type  string `yaml:"type,omitempty"`
	Init  string `yaml:"init,omitempty"`

	Yield  string   `yaml:"yield,omitempty"`
	Return string   `yaml:"return,omitempty"`
	Expr   string   `yaml:"expr,omitempty"`
	Assign []string `yaml:"assign,omitempty"`

	If   string `yaml:"if,omitempty"`
	Then []Stmt `yaml:"then,omitempty"`
	Else []Stmt `yaml:"else,omitempty"`

	While string `yaml:"while,omitempty"`
	Do    []Stmt `yaml:"do,omitempty"`

	Label string `yaml:"label,omitempty"`
	Goto  string `yaml:"goto,omitempty"`
	Block []Stmt `yaml:"block,omitempty"`
	Func  *Decl  `yaml:"func,omitempty"`

	// HasReturn distinguishes "return: ''", a void return, from the
	// absence of a return.
	HasReturn bool `yaml:"-"`
	Line      int  `yaml:"-"`
}

func (s *Stmt) UnmarshalYAML(value *yaml.Node) error {
	type rawStmt Stmt
	if err := value.Decode((*rawStmt)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "return" {
			s.HasReturn = true
		}
	}
	return nil
}
