// Package oracle is a reference ValueOracle. It computes fairness values off the
// protocol and submits them through setAssignment like any external oracle would.
package oracle

import (
	"errors"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
)

// MaxExactBuyers is the largest coalition solved by full permutation enumeration.
// Larger coalitions use the interest-count approximation.
const MaxExactBuyers = 8

var ErrNoInterest = errors.New("no buyer interest to value")

// Interest is one buyer's requested items, in interest order
type Interest struct {
	Buyer domain.Address
	Items []domain.ItemID
}

// InterestsOf returns the bundle's buyers and their items in interest order
func InterestsOf(b *domain.Bundle) []Interest {
	out := make([]Interest, 0, len(b.Buyers))
	for _, buyer := range b.Buyers {
		out = append(out, Interest{Buyer: buyer, Items: b.Interests[buyer]})
	}
	return out
}

// ShapleyWeights computes each buyer's Shapley value in the coverage game where
// a coalition is worth the number of distinct items its members asked for.
//
// Logic:
//   - Enumerate every ordering of the buyers
//   - Credit each buyer with the items it adds that earlier buyers did not ask for
//
// Weights are exact rationals and share a common scale; only their ratios matter.
func ShapleyWeights(interests []Interest) []*big.Rat {
	n := len(interests)
	counts := make([]int64, n)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	permute(order, 0, func(perm []int) {
		covered := make(map[domain.ItemID]bool)
		for _, idx := range perm {
			for _, item := range interests[idx].Items {
				if !covered[item] {
					covered[item] = true
					counts[idx]++
				}
			}
		}
	})

	weights := make([]*big.Rat, n)
	for i, c := range counts {
		weights[i] = new(big.Rat).SetInt64(c)
	}
	return weights
}

// permute calls fn with every permutation of xs[k:], swapping in place
func permute(xs []int, k int, fn func([]int)) {
	if k == len(xs) {
		fn(xs)
		return
	}
	for i := k; i < len(xs); i++ {
		xs[k], xs[i] = xs[i], xs[k]
		permute(xs, k+1, fn)
		xs[k], xs[i] = xs[i], xs[k]
	}
}

// SimplifiedWeights approximates Shapley values: every item is worth one unit,
// split evenly among the buyers who asked for it
func SimplifiedWeights(interests []Interest) []*big.Rat {
	demand := make(map[domain.ItemID]int64)
	for _, in := range interests {
		for _, item := range unique(in.Items) {
			demand[item]++
		}
	}

	weights := make([]*big.Rat, len(interests))
	for i, in := range interests {
		w := new(big.Rat)
		for _, item := range unique(in.Items) {
			w.Add(w, big.NewRat(1, demand[item]))
		}
		weights[i] = w
	}
	return weights
}

func unique(items []domain.ItemID) []domain.ItemID {
	seen := make(map[domain.ItemID]bool, len(items))
	out := make([]domain.ItemID, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// Apportion scales weights to price and rounds to whole units with the
// largest-remainder method. Leftover units go to the largest fractional parts;
// ties go to the earlier buyer.
//
// Safety: Ensures the result sums to price exactly
func Apportion(price decimal.Decimal, weights []*big.Rat) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, ErrNoInterest
	}
	if !price.IsPositive() || !price.IsInteger() {
		return nil, errors.New("price must be a positive whole amount")
	}

	total := new(big.Rat)
	for _, w := range weights {
		if w.Sign() < 0 {
			return nil, errors.New("weights must not be negative")
		}
		total.Add(total, w)
	}
	if total.Sign() == 0 {
		// Nobody adds value; split evenly.
		weights = make([]*big.Rat, len(weights))
		for i := range weights {
			weights[i] = big.NewRat(1, 1)
		}
		total = big.NewRat(int64(len(weights)), 1)
	}

	priceRat := new(big.Rat).SetInt(price.BigInt())
	shares := make([]*big.Int, len(weights))
	fractions := make([]*big.Rat, len(weights))
	assigned := new(big.Int)
	for i, w := range weights {
		exact := new(big.Rat).Mul(priceRat, w)
		exact.Quo(exact, total)

		floor := new(big.Int).Quo(exact.Num(), exact.Denom())
		shares[i] = floor
		fractions[i] = new(big.Rat).Sub(exact, new(big.Rat).SetInt(floor))
		assigned.Add(assigned, floor)
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]].Cmp(fractions[order[b]]) > 0
	})

	leftover := new(big.Int).Sub(price.BigInt(), assigned).Int64()
	for k := int64(0); k < leftover; k++ {
		i := order[int(k)%len(order)]
		shares[i].Add(shares[i], big.NewInt(1))
	}

	values := make([]decimal.Decimal, len(shares))
	sum := decimal.Zero
	for i, s := range shares {
		values[i] = decimal.NewFromBigInt(s, 0)
		sum = sum.Add(values[i])
	}
	if !sum.Equal(price) {
		return nil, errors.New("apportioned values do not sum to the price")
	}
	return values, nil
}

// Compute returns an assignment for the bundle that the protocol will accept
func Compute(b *domain.Bundle) (domain.Assignment, error) {
	interests := InterestsOf(b)
	if len(interests) == 0 {
		return domain.Assignment{}, ErrNoInterest
	}

	var weights []*big.Rat
	if len(interests) <= MaxExactBuyers {
		weights = ShapleyWeights(interests)
	} else {
		weights = SimplifiedWeights(interests)
	}

	values, err := Apportion(b.Price, weights)
	if err != nil {
		return domain.Assignment{}, err
	}

	a := domain.Assignment{BundleID: b.ID, Values: values}
	for _, in := range interests {
		a.Buyers = append(a.Buyers, in.Buyer)
	}
	return a, nil
}
