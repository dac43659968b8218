package probe

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/xtrl/cmd/util"
	"github.com/ValentinKolb/xtrl/lib/trl"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for display servers",
		RunE:    runBench,
		PreRunE: processBenchConfig,
	}
	benchNumThreads = 4
	benchBatchSize  = 100
	benchSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. round-trip,checked)"))
	key = "threads"
	benchCmd.Flags().Int(key, 4, util.WrapString("Number of connections to run the benchmarks on in parallel"))
	key = "batch"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many requests the pipelined benchmark sends before reading the replies"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchNumThreads = viper.GetInt("threads")
	benchBatchSize = viper.GetInt("batch")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	if benchNumThreads < 1 || benchBatchSize < 1 {
		return fmt.Errorf("threads and batch must be positive")
	}
	return nil
}

// benchmark is one benchmark, op performs a single operation on a display of
// its own and is called from several goroutines
type benchmark struct {
	name string
	op   func(d *trl.Display) error
}

var benchmarks = []benchmark{
	{"round-trip", func(d *trl.Display) error {
		return d.Sync()
	}},
	{"void", func(d *trl.Display) error {
		d.NoOperation()
		return nil
	}},
	{"pipelined", func(d *trl.Display) error {
		cookies := make([]trl.Cookie, benchBatchSize)
		for i := range cookies {
			cookies[i] = d.GetGeometry(common.Root)
		}
		for _, c := range cookies {
			if _, err := d.WaitReply(c); err != nil {
				return err
			}
		}
		return nil
	}},
	{"checked", func(d *trl.Display) error {
		return d.Check(d.SendChecked(common.OpMapWindow, common.EncodeWindow(common.Root)))
	}},
	{"intern", func(d *trl.Display) error {
		_, err := d.InternAtomReply(d.InternAtom(false, "_XTRL_BENCH"))
		return err
	}},
	{"error", func(d *trl.Display) error {
		_, err := d.WaitReply(d.GetGeometry(0))
		if err != trl.ErrRequestFailed {
			return fmt.Errorf("expected a failed request, got %v", err)
		}
		return nil
	}},
}

func runBench(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for display servers")

	// Print configuration
	config := util.GetClientConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, Batch: %d\n", benchNumThreads, benchBatchSize)
	fmt.Println()

	// open one display per thread, errors are expected in some benchmarks
	displays := make(chan *trl.Display, benchNumThreads)
	for i := 0; i < benchNumThreads; i++ {
		d, err := openDisplay(config)
		if err != nil {
			return err
		}
		d.SetErrorHandler(func(*trl.Display, *common.GenericError) {})
		defer d.Close()
		displays <- d
	}

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			b.SetParallelism(int(math.Ceil(float64(benchNumThreads) / float64(runtime.GOMAXPROCS(0)))))
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				d := <-displays
				defer func() { displays <- d }()

				for pb.Next() {
					if err := bm.op(d); err != nil {
						b.Errorf("(%s) - %v", bm.name, err)
						return
					}
				}
				// push buffered void requests out before the display is reused
				if err := d.Sync(); err != nil {
					b.Errorf("(%s) - sync failed: %v", bm.name, err)
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
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
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Serializer", "Transport", "Strict",
		"Threads", "Batch",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Transport.Endpoint,
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.FormatBool(config.Strict),
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(benchBatchSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
