package main

import (
	"flag"
	"fmt"
	"os"
)

// Build-time variables (set via -ldflags)
var (
	version   = "dev"     // Set via -ldflags "-X main.version=x.y.z"
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "sim":
		simCommand()
	case "version":
		fmt.Printf("qstp-sim version %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qstp-sim - QSTP Secure Mesh Tunnel Simulator

USAGE:
    qstp-sim <command> [options]

COMMANDS:
    sim       Run a two-endpoint tunnel simulation over an in-memory mesh
    version   Print version information
    help      Show this help message

EXAMPLES:
    # Steady traffic, then a threat spike that triggers a QACE failover
    qstp-sim sim --frames 10 --threat 95

    # ChaCha20-Poly1305 frames with the genetic optimizer and debug logs
    qstp-sim sim --cipher chacha20 --engine ga --log-level debug

PROJECT:
    qstp-go - Post-Quantum Secure Tunneling Protocol over mesh topics

    Security: ML-KEM-1024 (NIST FIPS 203) + ML-DSA-87 (NIST FIPS 204)
    Adaptive: QACE route engine (heuristic or genetic optimizer)`)
}

func simCommand() {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	frames := fs.Int("frames", 6, "Frames to send in each traffic phase")
	threat := fs.Int("threat", 95, "Threat score injected after the first phase (0-100)")
	cipher := fs.String("cipher", "aes-gcm", "Cipher suite: aes-gcm or chacha20")
	engine := fs.String("engine", "simple", "QACE engine: simple or ga")
	seed := fs.Int64("seed", 0, "Genetic optimizer seed (0 = time-derived)")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: qstp-sim sim [options]

Establish a tunnel pair, run traffic over an in-memory mesh, inject a
threat telemetry spike, and show both endpoints failing over to the
alternate route in step.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	if err := runSim(simConfig{
		frames:    *frames,
		threat:    *threat,
		cipher:    *cipher,
		engine:    *engine,
		seed:      *seed,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		tracing:   *tracing,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "sim failed: %v\n", err)
		os.Exit(1)
	}
}
