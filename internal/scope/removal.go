package scope

// Mark returns a logical timestamp on the removal log.
func (s *Stack) Mark() int { return len(s.removals) }

// Remove deletes a symbol from the innermost frame that holds it and logs
// the removal so a branch can undo it.
func (s *Stack) Remove(name string) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if sym, ok := s.frames[i].Symbols[name]; ok {
			delete(s.frames[i].Symbols, name)
			s.removals = append(s.removals, removal{frame: i, name: name, sym: sym})
			return true
		}
	}
	return false
}

// DrainSince restores every symbol removed after mark and truncates the
// log. It returns the names that were restored, in removal order.
func (s *Stack) DrainSince(mark int) []string {
	if mark > len(s.removals) {
		return nil
	}
	var names []string
	for i := len(s.removals) - 1; i >= mark; i-- {
		r := s.removals[i]
		if r.frame < len(s.frames) {
			s.frames[r.frame].Symbols[r.name] = r.sym
		}
	}
	for _, r := range s.removals[mark:] {
		names = append(names, r.name)
	}
	s.removals = s.removals[:mark]
	return names
}

// Branches runs each branch with an independent view of own-consumption.
// A symbol stays removed only if every branch removed it. When
// exhaustive is false an implicit empty branch exists, so nothing is removed.
func (s *Stack) Branches(exhaustive bool, branches ...func()) {
	mark := s.Mark()
	counts := map[string]int{}
	var order []string
	for _, b := range branches {
		b()
		seen := map[string]bool{}
		for _, n := range s.DrainSince(mark) {
			if seen[n] {
				continue
			}
			seen[n] = true
			if counts[n] == 0 {
				order = append(order, n)
			}
			counts[n]++
		}
	}
	if !exhaustive || len(branches) == 0 {
		return
	}
	for _, n := range order {
		if counts[n] == len(branches) {
			s.Remove(n)
		}
	}
}
