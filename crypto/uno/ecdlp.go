package uno

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/ctprivacy/crypto/group"
)

const (
	// DefaultDecryptBound is the largest amount Decrypt searches for.
	DefaultDecryptBound = uint64(1)<<32 - 1

	// DirectLookupLimit is the smallest baby-step table. Bounds below it are
	// answered with a single table lookup.
	DirectLookupLimit = uint64(1) << 16

	// MaxBabySteps caps the baby-step table. Larger bounds trade memory for
	// more giant steps.
	MaxBabySteps = uint64(1) << 20

	babyTableCacheSize = 4
)

var (
	solveTimer  = metrics.NewRegisteredTimer("uno/ecdlp/solve", nil)
	solveMisses = metrics.NewRegisteredMeter("uno/ecdlp/miss", nil)
	tablesBuilt = metrics.NewRegisteredCounter("uno/ecdlp/tables", nil)

	babyTables   *lru.Cache
	giantStrides *lru.Cache
)

func init() {
	var err error
	if babyTables, err = lru.New(babyTableCacheSize); err != nil {
		panic(err)
	}
	if giantStrides, err = lru.New(babyTableCacheSize); err != nil {
		panic(err)
	}
}

// babyTable maps the encoding of i·G to i for i in [0, n).
type babyTable map[[group.PointSize]byte]uint64

func loadBabyTable(n uint64) babyTable {
	if cached, ok := babyTables.Get(n); ok {
		return cached.(babyTable)
	}
	start := time.Now()
	table := make(babyTable, n)
	g := group.Base()
	acc := group.Identity()
	for i := uint64(0); i < n; i++ {
		table[group.EncodePoint(acc)] = i
		acc = group.Add(acc, g)
	}
	babyTables.Add(n, table)
	tablesBuilt.Inc(1)
	log.Debug("Built discrete log table", "entries", n, "elapsed", common.PrettyDuration(time.Since(start)))
	return table
}

func giantStride(n uint64) *group.Point {
	if cached, ok := giantStrides.Get(n); ok {
		return cached.(*group.Point)
	}
	stride := group.ScalarBaseMult(group.ScalarFromUint64(n))
	giantStrides.Add(n, stride)
	return stride
}

// babyStepsFor picks the table size for a search bound.
func babyStepsFor(maxAmount uint64) uint64 {
	n := uint64(math.Ceil(math.Sqrt(float64(maxAmount) + 1)))
	if n < DirectLookupLimit {
		n = DirectLookupLimit
	}
	if n > MaxBabySteps {
		n = MaxBabySteps
	}
	return n
}

// SolveDiscreteLog finds m in [0, maxAmount] with m·G equal to the 32-byte
// point msgPoint, as produced by DecryptToPoint.
//
// Uses baby-step/giant-step over a cached table: O(sqrt(maxAmount)) time
// and space up to MaxBabySteps. Returns (m, true, nil) on success,
// (0, false, nil) if m > maxAmount, or an error for a malformed point.
func SolveDiscreteLog(msgPoint []byte, maxAmount uint64) (uint64, bool, error) {
	point, err := group.DecodePoint(msgPoint)
	if err != nil {
		return 0, false, err
	}
	m, ok := solveDiscreteLog(point, maxAmount)
	return m, ok, nil
}

func solveDiscreteLog(point *group.Point, maxAmount uint64) (uint64, bool) {
	defer solveTimer.UpdateSince(time.Now())

	n := babyStepsFor(maxAmount)
	table := loadBabyTable(n)
	stride := giantStride(n)

	// Giant steps: check point - j·n·G for j in [0, maxAmount/n].
	current := group.CopyPoint(point)
	maxJ := maxAmount / n
	for j := uint64(0); ; j++ {
		if i, ok := table[group.EncodePoint(current)]; ok {
			base := j * n
			if i <= maxAmount-base {
				return base + i, true
			}
		}
		if j == maxJ {
			break
		}
		current = group.Sub(current, stride)
	}
	solveMisses.Mark(1)
	return 0, false
}
