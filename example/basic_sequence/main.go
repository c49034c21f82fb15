package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tflow "github.com/Swind/go-tflow"
	"github.com/Swind/go-tflow/core"
)

const sampleConfig = `
pool_id: basic-sequence
workers: 2
shutdown_timeout: 2s
log_level: debug
`

func main() {
	configPath := flag.String("config", "", "YAML pool config (defaults to a built-in sample)")
	flag.Parse()

	// 1. Load the pool configuration
	var (
		cfg core.Config
		err error
	)
	if *configPath != "" {
		cfg, err = tflow.LoadConfigFile(*configPath)
	} else {
		cfg, err = tflow.LoadConfig(strings.NewReader(sampleConfig))
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Start a pool built from it
	pool, err := tflow.NewGoroutineThreadPoolFromConfig(cfg, nil)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	pool.Start(context.Background())
	defer func() {
		if err := pool.StopGraceful(cfg.ShutdownTimeout); err != nil {
			log.Printf("stop: %v", err)
		}
	}()

	fmt.Println("=== Basic Sequence Example ===")

	// 3. Run a flow whose tasks each hand results to the next
	c := tflow.MustRun([]tflow.Task{
		func(c *tflow.Continuation, _ ...any) {
			fmt.Println("Task 1: fetching order")
			time.Sleep(50 * time.Millisecond) // Simulate work
			c.Next("order-42", 3)
		},
		func(c *tflow.Continuation, args ...any) {
			fmt.Printf("Task 2: pricing %v x%v\n", args[0], args[1])
			c.Data()["order"] = args[0]
			c.Next(args[1].(int) * 250)
		},
		func(c *tflow.Continuation, args ...any) {
			fmt.Printf("Task 3: charging %d cents for %v\n", args[0], c.Data()["order"])
			c.Next("receipt-" + c.ID().String()[:8])
		},
	}, func(err error, results ...any) {
		if err != nil {
			fmt.Println("Flow failed:", err)
			return
		}
		fmt.Println("Flow finished with", results)
	},
		tflow.WithName("checkout"),
		tflow.WithTaskRunner(tflow.NewSequencedTaskRunner(pool)),
		tflow.WithLogger(cfg.Logger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Wait(ctx); err != nil {
		log.Printf("wait: %v", err)
	}
	fmt.Println("=== Example Finished ===")
}
