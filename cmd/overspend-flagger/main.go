// Command overspend-flagger drives the campaign overspend workload against one or more
// PostgreSQL endpoints and prints a grep-friendly latency summary.
//
// Usage:
//
//	overspend-flagger [flags] hostnames campaigncount tpms durationseconds queryinterval budget adcount
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(submain(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
