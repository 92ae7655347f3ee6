package service

import (
	"fmt"
)

// Position says where a dragged topic lands relative to its drop target.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

func (p Position) Valid() bool { return p == Before || p == After }

// moveIndex returns a copy of ids with the element at from removed and
// reinserted at index to of the shortened list. Out of range indexes leave
// the order unchanged.
func moveIndex(ids []string, from, to int) []string {
	out := append([]string(nil), ids...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]string{item}, out[to:]...)...)
	return out
}

// Reposition removes dragged and reinserts it immediately before or after
// target, located after the removal.
func Reposition(ids []string, dragged, target string, pos Position) ([]string, error) {
	if !pos.Valid() {
		return nil, fmt.Errorf("%w: position must be before or after", ErrInvalidTopic)
	}
	from, to := indexOf(ids, dragged), indexOf(ids, target)
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("reorder: %w", ErrNotFound)
	}
	if dragged == target {
		return append([]string(nil), ids...), nil
	}

	// target's index once dragged has been taken out
	insert := to
	if from < to {
		insert--
	}
	if pos == After {
		insert++
	}
	return moveIndex(ids, from, insert), nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
