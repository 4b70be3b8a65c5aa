// SPDX-License-Identifier: MPL-2.0

package partition

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCount is returned for a partition count below 1.
	ErrInvalidCount = errors.New("partition count must be at least 1")
	// ErrInvalidPrefix is returned for an empty partition prefix.
	ErrInvalidPrefix = errors.New("partition prefix must not be empty")
)

type (
	// EntityComponents lists the components of one entity.
	EntityComponents struct {
		Entity     string
		Components []string
	}

	// Partition is one named queue of "entity/component" items.
	Partition struct {
		Name  string
		Items []string
	}

	// Assignment holds the partitions in index order.
	Assignment []Partition
)

// Name is "<prefix>_<index>", 1-based.
func Name(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index)
}

// Assign distributes entities, in order and each as one batch, to the
// partition holding the fewest items; ties go to the lowest index.
func Assign(entities []EntityComponents, count int, prefix string) (Assignment, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCount, count)
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, ErrInvalidPrefix
	}

	out := make(Assignment, count)
	for i := range out {
		out[i] = Partition{Name: Name(prefix, i+1), Items: []string{}}
	}

	for _, e := range entities {
		target := 0
		for i := 1; i < count; i++ {
			if len(out[i].Items) < len(out[target].Items) {
				target = i
			}
		}
		for _, c := range e.Components {
			out[target].Items = append(out[target].Items, e.Entity+"/"+c)
		}
	}
	return out, nil
}

// Sizes returns the item count of every partition.
func (a Assignment) Sizes() []int {
	out := make([]int, len(a))
	for i, p := range a {
		out[i] = len(p.Items)
	}
	return out
}
