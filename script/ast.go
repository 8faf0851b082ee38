package script

type node interface {
	position() int
}

type (
	literal struct {
		pos   int
		value any
	}
	ident struct {
		pos  int
		name string
	}
	member struct {
		pos  int
		obj  node
		name string
	}
	index struct {
		pos int
		obj node
		key node
	}
	call struct {
		pos  int
		fn   node
		args []node
	}
	unary struct {
		pos int
		op  string
		x   node
	}
	binary struct {
		pos  int
		op   string
		l, r node
	}
	conditional struct {
		pos             int
		test, then, els node
	}
	arrayLit struct {
		pos   int
		elems []node
	}
	objectLit struct {
		pos    int
		keys   []string
		values []node
	}
	templateLit struct {
		pos   int
		parts []node
	}
	assign struct {
		pos    int
		op     string
		target node
		value  node
	}
	update struct {
		pos    int
		op     string
		target node
		prefix bool
	}
)

type (
	exprStmt struct {
		pos int
		x   node
	}
	letStmt struct {
		pos  int
		name string
		init node
	}
	ifStmt struct {
		pos  int
		cond node
		then []node
		els  []node
	}
	blockStmt struct {
		pos   int
		stmts []node
	}
	returnStmt struct {
		pos int
		x   node
	}
)

func (n *literal) position() int     { return n.pos }
func (n *ident) position() int       { return n.pos }
func (n *member) position() int      { return n.pos }
func (n *index) position() int       { return n.pos }
func (n *call) position() int        { return n.pos }
func (n *unary) position() int       { return n.pos }
func (n *binary) position() int      { return n.pos }
func (n *conditional) position() int { return n.pos }
func (n *arrayLit) position() int    { return n.pos }
func (n *objectLit) position() int   { return n.pos }
func (n *templateLit) position() int { return n.pos }
func (n *assign) position() int      { return n.pos }
func (n *update) position() int      { return n.pos }
func (n *exprStmt) position() int    { return n.pos }
func (n *letStmt) position() int     { return n.pos }
func (n *ifStmt) position() int      { return n.pos }
func (n *blockStmt) position() int   { return n.pos }
func (n *returnStmt) position() int  { return n.pos }
