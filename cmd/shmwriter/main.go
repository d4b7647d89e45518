// Command shmwriter creates or attaches to a shared memory segment and
// writes fragments into it on a fixed interval, for exercising the segment
// against a shmreader/shmdump on the same host.
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

	"github.com/cenkalti/backoff/v4"
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
		rank        int
		overwrite   bool
		interval    time.Duration
		metricsAddr string
	)

	flag.IntVar(&key, "key", 0x1001, "shared memory segment key")
	flag.UintVar(&bufferCount, "buffers", 4, "number of buffers in the segment")
	flag.UintVar(&bufferSize, "buffer-size", 1024, "bytes per buffer")
	flag.IntVar(&staleMS, "stale-ms", 5000, "stale-owner reclaim timeout in milliseconds")
	flag.IntVar(&rank, "rank", 0, "opaque writer rank tag")
	flag.BoolVar(&overwrite, "overwrite", false, "reclaim full/reading buffers when none are empty")
	flag.DurationVar(&interval, "interval", time.Second, "time between writes")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9401", "Prometheus /metrics listen address")
	flag.Parse()

	reg := prometheus.NewRegistry()
	recorder := shmmetrics.NewPromRecorder(reg, "shmwriter")

	m, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        uint32(bufferCount),
		MaxBufferSize:      uint32(bufferSize),
		StaleBufferTimeout: time.Duration(staleMS) * time.Millisecond,
		Rank:               int32(rank),
		Recorder:           recorder,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmwriter:", err)
		os.Exit(1)
	}
	if !m.IsValid() {
		fmt.Fprintln(os.Stderr, "shmwriter: failed to attach to segment")
		os.Exit(1)
	}
	defer m.Close()

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	http.Handle("/live", shmhealth.NewHandler(m))
	go func() {
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			fmt.Fprintln(os.Stderr, "shmwriter: metrics server:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			fmt.Println("shmwriter: shutting down")
			return
		case <-ticker.C:
			seq++
			body := []byte(fmt.Sprintf("fragment %d from manager %d", seq, m.ManagerID()))
			frag := fragment.NewWithBody(fragment.Header{
				Version:    1,
				Type:       1,
				SequenceID: seq,
				FragmentID: uint32(m.ManagerID()),
				Timestamp:  uint64(time.Now().UnixMicro()),
			}, body)

			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = interval
			status := fragment.WriteFragmentRetry(ctx, m, frag, overwrite, shm.Unowned, b)
			if status != fragment.StatusOK {
				fmt.Printf("shmwriter: write failed, status=%d\n", status)
				continue
			}
			fmt.Printf("shmwriter: wrote seq=%d (%d bytes)\n", seq, len(body))
		}
	}
}
