package router

// uniqueIDGenerator mints ids of the form workerId*10^13 + counter, so two
// workers with distinct ids in [1,899] never collide for the first
// 10^13-1 allocations each.
type uniqueIDGenerator struct {
	next int64
}

const uniqueIDBase = 10_000_000_000_000

func newUniqueIDGenerator(workerID uint32) *uniqueIDGenerator {
	return &uniqueIDGenerator{next: int64(workerID)*uniqueIDBase + 1}
}

func (g *uniqueIDGenerator) Generate() float64 {
	v := g.next
	g.next++
	return float64(v)
}
