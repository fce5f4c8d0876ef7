package model

// Reactions: агрегат реакций сущности глазами текущего зрителя.
// Counts: kind -> количество, Mine: виды, которые поставил сам зритель.
// Каждый вид из Mine обязан иметь положительный счётчик в Counts.
type Reactions struct {
	Total  int            `json:"totalReactions"`
	Counts map[string]int `json:"counts,omitempty"`
	Mine   []string       `json:"mine,omitempty"`
}

func (r Reactions) Clone() Reactions {
	out := Reactions{Total: r.Total}
	if r.Counts != nil {
		out.Counts = make(map[string]int, len(r.Counts))
		for k, v := range r.Counts {
			out.Counts[k] = v
		}
	}
	if r.Mine != nil {
		out.Mine = append([]string(nil), r.Mine...)
	}
	return out
}

func (r Reactions) Has(kind string) bool {
	for _, k := range r.Mine {
		if k == kind {
			return true
		}
	}
	return false
}

// Toggle mirrors the server toggle: an applied kind is removed and its count
// decremented (dropped at zero), otherwise it is added and incremented.
func (r Reactions) Toggle(kind string) Reactions {
	out := r.Clone()
	if out.Has(kind) {
		mine := out.Mine[:0]
		for _, k := range out.Mine {
			if k != kind {
				mine = append(mine, k)
			}
		}
		out.Mine = mine

		if n := out.Counts[kind] - 1; n > 0 {
			out.Counts[kind] = n
		} else {
			delete(out.Counts, kind)
		}
		if out.Total > 0 {
			out.Total--
		}
	} else {
		out.Mine = append(out.Mine, kind)
		if out.Counts == nil {
			out.Counts = map[string]int{}
		}
		out.Counts[kind]++
		out.Total++
	}

	if len(out.Mine) == 0 {
		out.Mine = nil
	}
	if len(out.Counts) == 0 {
		out.Counts = nil
	}
	return out
}

// Merge takes the shared counters from another copy of the aggregate and keeps
// the viewer's own kinds that are still counted.
func (r Reactions) Merge(shared Reactions) Reactions {
	out := shared.Clone()
	out.Mine = nil
	for _, k := range r.Mine {
		if out.Counts[k] > 0 {
			out.Mine = append(out.Mine, k)
		}
	}
	return out
}

// Valid reports whether counters are non-negative and every applied kind is counted.
func (r Reactions) Valid() bool {
	if r.Total < 0 {
		return false
	}
	for _, n := range r.Counts {
		if n < 0 {
			return false
		}
	}
	for _, k := range r.Mine {
		if r.Counts[k] <= 0 {
			return false
		}
	}
	return true
}
