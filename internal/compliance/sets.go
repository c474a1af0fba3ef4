package compliance

import "github.com/ppiankov/rxwizard/internal/extract"

func toSet(nums []int) map[int]bool {
	set := make(map[int]bool, len(nums))
	for _, n := range nums {
		set[n] = true
	}
	return set
}

// difference returns a∖b, ascending
func difference(a, b []int) []int {
	exclude := toSet(b)
	keep := make(map[int]bool)
	for _, n := range a {
		if !exclude[n] {
			keep[n] = true
		}
	}
	return extract.SortedKeys(keep)
}

func union(sets ...[]int) []int {
	all := make(map[int]bool)
	for _, s := range sets {
		for _, n := range s {
			all[n] = true
		}
	}
	return extract.SortedKeys(all)
}
