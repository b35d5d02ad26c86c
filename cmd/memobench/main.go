// Command memobench drives a memoized function with a Zipf-distributed
// workload and reports hit rates. Flags default from a YAML config file
// (--config) and MEMOBENCH_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	os.Exit(realMain(context.Background(), os.Args))
}

func realMain(ctx context.Context, args []string) int {
	app := newApp(os.Stdout)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
