// Command bare-lsp runs a minimal LSP host over stdin/stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/hzeller/bare-lsp/internal/lspserver"
	"github.com/hzeller/bare-lsp/internal/stream"
)

// Version is set at build time via -ldflags.
var Version = "(dev) v0.0.0"

const readBufferSize = 1 << 20 // 1 MiB, matching the reference deployment's frame buffer.

func main() {
	versionFlag := flag.Bool("version", false, "Print the version of the program")
	logfileFlag := flag.String("logfile", "", "Path to log file")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("bare-lsp version %s\n", Version)
		return
	}

	if *logfileFlag != "" {
		logFile, err := os.OpenFile(*logfileFlag, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
		log.SetFlags(log.Ldate | log.Ltime | log.Llongfile)
		log.Println("starting bare-lsp...")
	} else {
		log.SetOutput(io.Discard)
	}
	commonlog.Configure(2, nil) // Logger used by the protocol types package.

	transport := &framingWriter{out: os.Stdout}
	s := lspserver.NewServer(readBufferSize, transport.Write)

	err := s.Run(int(os.Stdin.Fd()), s.IdleInterval(), func(buf []byte) int {
		n, readErr := os.Stdin.Read(buf)
		if readErr != nil {
			if readErr == io.EOF {
				return 0
			}
			return -1
		}
		return n
	})

	printStats(s)
	if err != nil && err != stream.ErrUnavailable {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// framingWriter is the thin boundary adapter mentioned in the host's
// wire-format design: it prepends a Content-Length header to every
// dispatcher output before writing it to the real transport. The core
// dispatcher itself never produces or consumes framing.
type framingWriter struct {
	out io.Writer
}

func (f *framingWriter) Write(body string) {
	fmt.Fprintf(f.out, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func printStats(s *lspserver.Server) {
	fmt.Fprintln(os.Stderr, "--------------- Statistic Counters Stats ---------------")
	fmt.Fprintf(os.Stderr, "Total bytes : %9d\n", s.StatTotalBytesRead())
	fmt.Fprintf(os.Stderr, "Largest body: %9d\n", s.StatLargestBodySeen())

	fmt.Fprintln(os.Stderr, "\n--- Methods called ---")
	counters := s.StatCounters()
	keys := make([]string, 0, len(counters))
	longest := 0
	for k := range counters {
		keys = append(keys, k)
		if len(k) > longest {
			longest = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "%*s %9d\n", longest, k, counters[k])
	}
}
