package predicate

// Render renders the predicate into the store's filter vocabulary. Paths equal to idField are
// rewritten to the reserved primary key.
func (p Predicate) Render(idField string) M {
	switch p.kind {
	case kindNone:
		return M{IDKey: M{"$exists": false}}
	case kindAnd, kindOr:
		key := "$and"
		if p.kind == kindOr {
			key = "$or"
		}
		children := make([]any, 0, len(p.children))
		for _, c := range p.children {
			children = append(children, c.Render(idField))
		}
		return M{key: children}
	case kindLeaf:
		return M{ResolvePath(p.path, idField): p.renderLeaf()}
	default:
		return M{}
	}
}

func (p Predicate) renderLeaf() any {
	switch p.op {
	case OpEq, OpIncludes:
		if p.negated {
			return M{"$ne": p.operand}
		}
		return p.operand
	case OpNull:
		if p.negated {
			return M{"$ne": nil}
		}
		return nil
	case OpExists:
		return M{"$exists": !p.negated}
	case OpIn:
		if p.negated {
			return M{"$nin": p.operand}
		}
		return M{"$in": p.operand}
	default:
		cmp := M{"$" + string(p.op): p.operand}
		if p.negated {
			return M{"$not": cmp}
		}
		return cmp
	}
}
