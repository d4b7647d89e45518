// Command shmreader attaches to an existing shared memory segment and
// drains fragments from it as they become available, printing each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fnaldaq/shmring/pkg/shm"
	"github.com/fnaldaq/shmring/pkg/shmfragment"
	"github.com/fnaldaq/shmring/pkg/shmhealth"
	"github.com/fnaldaq/shmring/pkg/shmmetrics"
)

func main() {
	var (
		key         int
		bufferCount uint
		bufferSize  uint
		staleMS     int
		pollEvery   time.Duration
		metricsAddr string
	)

	flag.IntVar(&key, "key", 0x1001, "shared memory segment key")
	flag.UintVar(&bufferCount, "buffers", 4, "number of buffers in the segment")
	flag.UintVar(&bufferSize, "buffer-size", 1024, "bytes per buffer")
	flag.IntVar(&staleMS, "stale-ms", 5000, "stale-owner reclaim timeout in milliseconds")
	flag.DurationVar(&pollEvery, "poll", 100*time.Millisecond, "time between read attempts when no buffer is ready")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9402", "Prometheus /metrics listen address")
	flag.Parse()

	reg := prometheus.NewRegistry()
	recorder := shmmetrics.NewPromRecorder(reg, "shmreader")

	m, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        uint32(bufferCount),
		MaxBufferSize:      uint32(bufferSize),
		StaleBufferTimeout: time.Duration(staleMS) * time.Millisecond,
		Recorder:           recorder,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmreader:", err)
		os.Exit(1)
	}
	if !m.IsValid() {
		fmt.Fprintln(os.Stderr, "shmreader: failed to attach to segment")
		os.Exit(1)
	}
	defer m.Close()

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.Handle("/ready", shmhealth.NewHandler(m))
	go func() {
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			fmt.Fprintln(os.Stderr, "shmreader: metrics server:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("shmreader: attached as manager %d\n", m.ManagerID())

	for {
		select {
		case <-ctx.Done():
			fmt.Println("shmreader: shutting down")
			return
		default:
		}

		if !m.ReadyForRead() {
			time.Sleep(pollEvery)
			continue
		}

		frag := fragment.New()
		status := fragment.ReadFragment(m, frag)
		if status != fragment.StatusOK {
			fmt.Printf("shmreader: read failed, status=%d\n", status)
			continue
		}

		h := frag.Header()
		fmt.Printf("shmreader: seq=%d fragment=%d bytes=%d body=%q\n",
			h.SequenceID, h.FragmentID, len(frag.Body()), string(frag.Body()))
	}
}
