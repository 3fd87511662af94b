package transform

// elideImports queues removal of every tracked import declaration none of
// whose bindings is referenced outside the planned removal ranges. It
// returns the sources of the declarations removed.
//
// Liveness can only be decided once every removal range is known, so this
// runs after planning over the references the locator collected.
func elideImports(l *locator, p *plan) []string {
	live := make(map[string]bool)
	for name := range l.bindings {
		for _, offset := range l.refs[name] {
			if !p.removes(offset) {
				live[name] = true
				break
			}
		}
	}

	var removed []string
	for _, decl := range l.imports {
		if len(decl.bindings) == 0 {
			// side-effect import, nothing to prove unused
			continue
		}
		used := false
		for _, name := range decl.bindings {
			if live[name] {
				used = true
				break
			}
		}
		if used {
			continue
		}
		p.remove(decl.node.StartByte(), decl.node.EndByte())
		removed = append(removed, decl.source)
	}
	return removed
}
