// Package rpc measures a chain's RPC endpoints so the fastest in-sync one is
// dialed first.
package rpc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"
)

const (
	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
	probeTimeout        = 5 * time.Second
)

// Result is one endpoint measurement.
type Result struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	ChainID     int64
	Err         error
}

// Healthy reports whether the endpoint answered.
func (r Result) Healthy() bool { return r.Err == nil }

// Probe dials url and times eth_blockNumber. A non-zero wantChainID marks an
// endpoint serving another chain as failed.
func Probe(ctx context.Context, url string, wantChainID int64) Result {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res := Result{URL: url}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		res.Err = err
		return res
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.ChainID = id.Int64()
	if wantChainID != 0 && res.ChainID != wantChainID {
		res.Err = fmt.Errorf("chain ID mismatch: expected %d, got %d", wantChainID, res.ChainID)
		return res
	}

	start := time.Now()
	block, err := client.BlockNumber(ctx)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.BlockNumber = block
	return res
}

// Benchmark probes every url in parallel. Results keep the input order.
func Benchmark(ctx context.Context, urls []string, wantChainID int64) []Result {
	results := make([]Result, len(urls))
	var g errgroup.Group
	for i, url := range urls {
		g.Go(func() error {
			results[i] = Probe(ctx, url, wantChainID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Rank orders the results for dialing: healthy in-sync endpoints fastest
// first, then stale ones, then failed ones in their original order.
func Rank(results []Result) []Result {
	var best uint64
	for _, r := range results {
		if r.Healthy() && r.BlockNumber > best {
			best = r.BlockNumber
		}
	}

	tier := func(r Result) int {
		switch {
		case !r.Healthy():
			return 2
		case best-r.BlockNumber > staleBlockThreshold:
			return 1
		default:
			return 0
		}
	}

	out := append([]Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := tier(out[i]), tier(out[j])
		if ti != tj {
			return ti < tj
		}
		if ti == 2 {
			return false
		}
		return out[i].Latency < out[j].Latency
	})
	return out
}

// Order benchmarks urls and returns them in Rank order. A single URL is
// returned as is.
func Order(ctx context.Context, urls []string, wantChainID int64) []string {
	if len(urls) < 2 {
		return urls
	}
	ranked := Rank(Benchmark(ctx, urls, wantChainID))
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.URL
	}
	return out
}
