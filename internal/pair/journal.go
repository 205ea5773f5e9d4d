package pair

// journal records undo steps for writes made during an in-flight call.
type journal struct {
	active  bool
	entries []func()
}

func (j *journal) begin() {
	j.active = true
	j.entries = j.entries[:0]
}

func (j *journal) record(undo func()) {
	if !j.active {
		return
	}
	j.entries = append(j.entries, undo)
}

func (j *journal) revert() {
	for i := len(j.entries) - 1; i >= 0; i-- {
		j.entries[i]()
	}
	j.discard()
}

func (j *journal) discard() {
	j.active = false
	for i := range j.entries {
		j.entries[i] = nil
	}
	j.entries = j.entries[:0]
}
