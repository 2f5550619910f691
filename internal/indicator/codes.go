package indicator

import "strconv"

// RecalculateCodes recomputes every node's code top-down, breadth first from
// the roots, and normalises sibling orders to a dense 1..N. It is
// deterministic and safe to call any number of times.
func (s *Store) RecalculateCodes() {
	index := s.childIndex()
	queue := index[""]
	renumber(queue)
	for i, root := range queue {
		root.Code = rootCode(s.governanceAreaID, i+1)
	}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		kids := index[parent.TempID]
		renumber(kids)
		for i, k := range kids {
			k.Code = parent.Code + "." + strconv.Itoa(i+1)
		}
		queue = append(queue, kids...)
	}
}

// rootCode is "<area>.<k>" once a governance area is chosen and "<k>" before.
func rootCode(governanceAreaID, position int) string {
	if governanceAreaID > 0 {
		return strconv.Itoa(governanceAreaID) + "." + strconv.Itoa(position)
	}
	return strconv.Itoa(position)
}

// ExpectedCode derives id's code by walking its ancestor chain. It returns
// false for unknown ids or broken chains.
func (s *Store) ExpectedCode(id string) (string, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return "", false
	}
	var chain []*IndicatorNode
	for steps := 0; ok && steps <= len(s.nodes); steps++ {
		chain = append(chain, n)
		if n.IsRoot() {
			break
		}
		n, ok = s.nodes[n.ParentKey()]
	}
	if !ok || !chain[len(chain)-1].IsRoot() {
		return "", false
	}

	root := chain[len(chain)-1]
	code := rootCode(s.governanceAreaID, s.position(root))
	for i := len(chain) - 2; i >= 0; i-- {
		code += "." + strconv.Itoa(s.position(chain[i]))
	}
	return code, true
}

// position is n's 1-based index among its siblings.
func (s *Store) position(n *IndicatorNode) int {
	for i, sib := range s.children(n.ParentKey()) {
		if sib == n {
			return i + 1
		}
	}
	return 0
}
