package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/cmd/util"
	"github.com/ValentinKolb/memDB/lib/db"
	dbutil "github.com/ValentinKolb/memDB/lib/db/util"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for memDB servers",
		Long: `Runs a series of workloads (set, set-large, get, dset, push, sadd, range, mixed) against a memDB server
and prints throughput, latency percentiles and payload sizes. All keys are prefixed with a random id and deleted afterwards.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	perfPercentiles = []float64{0.5, 0.9, 0.99}
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	perfKeyPrefix = fmt.Sprintf("__perf-%s", uuid.NewString()[:8])

	return nil
}

// --------------------------------------------------------------------------
// Workloads
// --------------------------------------------------------------------------

// workload is a single benchmark. op runs one operation against key and
// returns the payload size it moved.
type workload struct {
	name    string
	prepare func(keys []string) error
	op      func(key string, i int) (int, error)
}

// workloadResult combines the benchmark result with the client side measurements
type workloadResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Histogram
	meter   gometrics.Meter
	sizes   *dbutil.SizeHistogram
	balance dbutil.DistributionStats
}

func (r *workloadResult) skipped() bool {
	return r.latency == nil
}

func workloads() []workload {
	small := structpb.NewStringValue("test")
	large := structpb.NewStringValue(strings.Repeat("x", perfLargeValueSizeKB*1024))
	smallSize := proto.Size(small)
	largeSize := proto.Size(large)

	setAll := func(keys []string) error {
		for _, k := range keys {
			if _, err := rpcStore.Set([]byte(k), small); err != nil {
				return err
			}
		}
		return nil
	}

	return []workload{
		{
			name: "set",
			op: func(key string, _ int) (int, error) {
				_, err := rpcStore.Set([]byte(key), small)
				return smallSize, err
			},
		},
		{
			name: "set-large",
			op: func(key string, _ int) (int, error) {
				_, err := rpcStore.Set([]byte(key), large)
				return largeSize, err
			},
		},
		{
			name:    "get",
			prepare: setAll,
			op: func(key string, _ int) (int, error) {
				v, err := rpcStore.Get([]byte(key))
				return proto.Size(v), err
			},
		},
		{
			name: "dset",
			op: func(key string, i int) (int, error) {
				_, _, err := rpcStore.DSet([]byte(key), []byte(strconv.Itoa(i%perfKeySpread)), small)
				return smallSize, err
			},
		},
		{
			name: "push",
			op: func(key string, i int) (int, error) {
				if i%2 == 0 {
					_, _, err := rpcStore.Push([]byte(key), small, false)
					return smallSize, err
				}
				v, _, err := rpcStore.Pop([]byte(key), true)
				if store.IsNotFound(err) {
					return 0, nil
				}
				return proto.Size(v), err
			},
		},
		{
			name: "sadd",
			op: func(key string, i int) (int, error) {
				member := strconv.Itoa(i % perfKeySpread)
				_, _, err := rpcStore.SAdd([]byte(key), []byte(member))
				return len(member), err
			},
		},
		{
			name:    "range",
			prepare: setAll,
			op: func(_ string, _ int) (int, error) {
				lower, upper := keyAt(0, "range"), keyAt(perfKeySpread-1, "range")
				stream, err := rpcStore.Range(db.Included([]byte(lower)), db.Included([]byte(upper)))
				if err != nil {
					return 0, err
				}
				defer stream.Close()
				size := 0
				for {
					k, err := stream.Recv()
					if errors.Is(err, io.EOF) {
						return size, nil
					}
					if err != nil {
						return size, err
					}
					size += len(k)
				}
			},
		},
		{
			name: "mixed",
			op: func(key string, i int) (int, error) {
				var err error
				size := smallSize
				switch i % 5 {
				case 0:
					_, err = rpcStore.Set([]byte(key), small)
				case 1:
					var v *structpb.Value
					v, err = rpcStore.Get([]byte(key))
					size = proto.Size(v)
				case 2:
					_, _, err = rpcStore.DSet([]byte(key+"/dict"), []byte(key), small)
				case 3:
					_, _, err = rpcStore.Push([]byte(key+"/queue"), small, i%2 == 0)
				case 4:
					_, err = rpcStore.Del([]byte(key))
					size = 0
				}
				if store.IsNotFound(err) {
					return 0, nil
				}
				return size, err
			},
		},
	}
}

// runWorkload benchmarks w with perfNumThreads parallel workers
func runWorkload(w workload) *workloadResult {
	result := &workloadResult{}
	if shouldSkip(w.name) {
		return result
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		keys := getKeys(w.name)
		if w.prepare != nil {
			if err := w.prepare(keys); err != nil {
				log.Printf("(%s) - error preparing keys: %v\n", w.name, err)
			}
		}

		b.Cleanup(func() {
			for _, k := range keys {
				for _, suffix := range []string{"", "/dict", "/queue"} {
					if _, err := rpcStore.Del([]byte(k + suffix)); err != nil {
						log.Printf("(%s) - error deleting key: %v\n", w.name, err)
					}
				}
			}
		})

		// measurements are reset on every run, the last (largest) run is kept
		latency := gometrics.NewHistogram(gometrics.NewExpDecaySample(1028, 0.015))
		meter := gometrics.NewMeter()
		defer meter.Stop()
		sizes := dbutil.NewSizeHistogram()

		var workerID atomic.Int64
		var mu sync.Mutex
		var perWorker []float64

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			offset := int(workerID.Add(1))
			ops := 0
			for pb.Next() {
				i := offset + ops*perfNumThreads
				start := time.Now()
				size, err := w.op(keys[i%len(keys)], i)
				latency.Update(time.Since(start).Microseconds())
				meter.Mark(1)
				if err != nil {
					log.Printf("(%s) - error performing operation: %v\n", w.name, err)
				} else {
					sizes.Add(size)
				}
				ops++
			}
			mu.Lock()
			perWorker = append(perWorker, float64(ops))
			mu.Unlock()
		})

		result.latency = latency.Snapshot()
		result.meter = meter.Snapshot()
		result.sizes = sizes
		result.balance = dbutil.NewDistributionStats(perWorker)
	})

	return result
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for memDB servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Key prefix: %s\n", perfKeyPrefix)
	fmt.Println()

	fmt.Println("starting tests...")

	names := make([]string, 0)
	results := make(map[string]*workloadResult)

	for _, w := range workloads() {
		result := runWorkload(w)
		names = append(names, w.name)
		results[w.name] = result
		printResult(w.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, names, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

func keyAt(i int, prefix string) string {
	return fmt.Sprintf("%s-%s-%06d", perfKeyPrefix, prefix, i)
}

// getKeys creates the test keys of a workload
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = keyAt(i, prefix)
	}
	return keys
}

func opsPerSecond(result testing.BenchmarkResult) float64 {
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result *workloadResult) {
	if result.skipped() {
		fmt.Printf("%-12sskipped\n", test)
		return
	}

	p := result.latency.Percentiles(perfPercentiles)
	fmt.Printf("%-12s%8.0f ops/sec  %s/op  p50=%.0fµs p90=%.0fµs p99=%.0fµs  avg payload=%dB  worker balance=%.2f\n",
		test,
		opsPerSecond(result.bench),
		time.Duration(result.bench.NsPerOp()),
		p[0], p[1], p[2],
		result.sizes.Mean(),
		result.balance.DistributionQuality,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, names []string, results map[string]*workloadResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "MeterRate", "P50Micros", "P90Micros", "P99Micros",
		"AvgPayloadBytes", "MedianPayloadBytes", "WorkerBalance", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range names {
		result := results[test]

		row := []string{test}
		if result.skipped() {
			row = append(row, "0", "0", "0", "0", "0", "0", "0", "0", "0", "true")
		} else {
			p := result.latency.Percentiles(perfPercentiles)
			row = append(row,
				strconv.FormatInt(result.bench.NsPerOp(), 10),
				fmt.Sprintf("%.0f", opsPerSecond(result.bench)),
				fmt.Sprintf("%.0f", result.meter.RateMean()),
				fmt.Sprintf("%.0f", p[0]),
				fmt.Sprintf("%.0f", p[1]),
				fmt.Sprintf("%.0f", p[2]),
				strconv.Itoa(result.sizes.Mean()),
				strconv.Itoa(result.sizes.Percentile(50)),
				fmt.Sprintf("%.2f", result.balance.DistributionQuality),
				"false",
			)
		}

		row = append(row,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
