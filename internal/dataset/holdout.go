package dataset

import (
	"sort"

	"github.com/wonny/foreval/internal/contracts"
)

// HoldoutSplit splits observations into train/test by the last n unique
// timestamps across all entities (학습 때와 동일한 분할).
// n 이 고유 날짜 수 이상이면 전부 test
func HoldoutSplit(obs []contracts.Observation, n int) (train, test []contracts.Observation) {
	if n <= 0 {
		return append([]contracts.Observation(nil), obs...), nil
	}

	unique := make(map[int64]struct{})
	for _, o := range obs {
		unique[o.Timestamp.UnixNano()] = struct{}{}
	}
	stamps := make([]int64, 0, len(unique))
	for ts := range unique {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	if n > len(stamps) {
		n = len(stamps)
	}
	testSet := make(map[int64]struct{}, n)
	for _, ts := range stamps[len(stamps)-n:] {
		testSet[ts] = struct{}{}
	}

	for _, o := range obs {
		if _, ok := testSet[o.Timestamp.UnixNano()]; ok {
			test = append(test, o)
		} else {
			train = append(train, o)
		}
	}
	return train, test
}
