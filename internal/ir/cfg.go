package ir

// Prune removes blocks that cannot be reached from the entry block.
// Lowering may leave such blocks behind, e.g. the continuation of a loop
// whose body always returns.
func Prune(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}
	reachable := make(map[*Block]bool, len(f.Blocks))
	queue := []*Block{f.Blocks[0]}
	reachable[f.Blocks[0]] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, t := range term.Targets {
			if !reachable[t] {
				reachable[t] = true
				queue = append(queue, t)
			}
		}
	}
	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	f.Blocks = kept
}

// Preds returns the predecessors of every block in f.
func Preds(f *Func) map[*Block][]*Block {
	preds := make(map[*Block][]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if term := b.Terminator(); term != nil {
			for _, t := range term.Targets {
				preds[t] = append(preds[t], b)
			}
		}
	}
	return preds
}
